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

// Package state implements the atomic resolution-state word of a Deferred.
//
// The word moves through four values, and only forward:
//
//	Waiting(0) -> Executing(1) -> Resolving(2) -> Resolved(3)
//
// Waiting and Executing may both transition directly to Resolving.
// Resolving is a transient value owned by the single resolving goroutine;
// it exists so that exactly one resolution attempt can win the word before
// the result slot is written.
package state

import "sync/atomic"

var (
	cas  = atomic.CompareAndSwapUint32
	load = atomic.LoadUint32
)

// the possible values of the word. the order matters; transitions are
// monotonically non-decreasing.
const (
	Waiting uint32 = iota
	Executing
	Resolving
	Resolved
)

// Word holds the resolution state of one Deferred.
// It's read and written/updated atomically. The zero value is Waiting.
type Word uint32

// Load returns the current state value.
func (w *Word) Load() uint32 {
	return load((*uint32)(w))
}

// MarkExecuting moves the word from Waiting to Executing.
// It returns true if this call made the transition, and false if the word
// was already at Executing or beyond. It never moves the word backwards.
func (w *Word) MarkExecuting() bool {
	return cas((*uint32)(w), Waiting, Executing)
}

// StartResolving attempts to claim the word for resolution, moving it from
// Waiting or Executing to Resolving.
// It returns true only for the single caller that wins the claim; every
// other concurrent or later caller gets false.
func (w *Word) StartResolving() bool {
	for {
		s := load((*uint32)(w))
		if s >= Resolving {
			return false
		}
		if cas((*uint32)(w), s, Resolving) {
			return true
		}
	}
}

// FinishResolving moves the word from Resolving to Resolved.
// Only the goroutine that won StartResolving may call it.
func (w *Word) FinishResolving() {
	if !cas((*uint32)(w), Resolving, Resolved) {
		// the word is owned by the resolving goroutine between the two
		// calls, so any other value here is a corrupted word.
		panic("deferred: internal: unexpected state change")
	}
}

// IsResolved reports whether the state value s is Resolved.
func IsResolved(s uint32) bool { return s == Resolved }

// IsResolving reports whether the state value s is Resolving.
func IsResolving(s uint32) bool { return s == Resolving }
