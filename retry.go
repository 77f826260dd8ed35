// Copyright 2025 Mark Karren
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package deferred

// Retrying runs task up to attempts times, re-running it on each failure,
// and resolves with the first success or the last failure. Attempts after
// the first are chained through Recover, so task only re-runs when the
// previous attempt actually failed.
//
// An attempts below 1 resolves immediately with an InvalidError. Callers
// that want spacing between attempts compose task with Delay.
func Retrying[T any](attempts int, task func() *Deferred[T]) *Deferred[T] {
	if task == nil {
		panic(nilCallbackPanicMsg)
	}
	if attempts < 1 {
		return Failed[T](&InvalidError{Message: "attempts must be >= 1"})
	}

	d := task()
	for i := 1; i < attempts; i++ {
		d = d.Recover(func(error) *Deferred[T] {
			return task()
		})
	}
	return d
}
