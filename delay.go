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

import (
	"time"

	"github.com/mkarren/deferred/result"
)

// Delay returns a Deferred resolving with the same result as this one, but
// not before dur has elapsed from now. Failures bypass the delay and
// propagate immediately. A non-positive dur is the identity transform.
func (d *Deferred[T]) Delay(dur time.Duration) *Deferred[T] {
	return d.DelayUntil(time.Now().Add(dur))
}

// DelayUntil is Delay against an absolute deadline. A deadline in the past
// is the identity transform.
func (d *Deferred[T]) DelayUntil(deadline time.Time) *Deferred[T] {
	dst, r := derive[T](d.exec)
	d.Observe(func(res result.Result[T]) {
		if res.Failed() {
			// failures propagate immediately; only successes are held
			// back to the deadline.
			r.Resolve(res)
			return
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			r.Resolve(res)
			return
		}
		d.exec.SubmitAfter(remaining, func() {
			r.Resolve(res)
		})
	})
	r.RetainSource(d)
	return dst
}

// Timeout returns a Deferred equal to this one if it resolves within dur;
// otherwise the downstream fails with a TimedOutError and this Deferred is
// cancelled. The optional reason is carried on both errors.
func (d *Deferred[T]) Timeout(dur time.Duration, reason ...string) *Deferred[T] {
	why := "deadline elapsed"
	if len(reason) != 0 {
		why = reason[0]
	}
	dst, r := derive[T](d.exec)
	d.exec.SubmitAfter(dur, func() {
		if r.Resolve(result.OfErr[T](&TimedOutError{Reason: why})) {
			d.Cancel(why)
		}
	})
	d.Observe(func(res result.Result[T]) {
		r.Resolve(res)
	})
	r.RetainSource(d)
	return dst
}
