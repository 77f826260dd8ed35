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

// Package deferred provides a composable, lock-free, typed future
// implementation for asynchronous value propagation.
//
// A Deferred is a handle to a computation whose result, a success value or
// a failure, becomes available at some future time. Once resolved, the
// result is immutable and is broadcast to every registered observer,
// exactly once each. The producer side is the Resolver, the only write
// capability for a Deferred.
//
// A Deferred has three visible states, and moves through them only
// forward:
// Waiting: the computation hasn't started.
// Executing: the computation is running.
// Resolved: the result is final and visible.
//
// General Notes:-
//
// * Exactly one resolution attempt succeeds; every later attempt reports
// failure and changes nothing.
//
// * Observers registered before resolution are dispatched in registration
// order; observers registered after resolution are dispatched immediately.
//
// * Handlers never run synchronously inside the call that registers them or
// the call that resolves the Deferred. They're always submitted to the
// Deferred's executor, an exec.Executor chosen at
// construction and inherited by combinators unless overridden with
// EnqueuingOn or EnqueuingAt.
//
// * The core holds no locks; the resolution state and the observer list
// are maintained with atomics only.
//
// Composition:-
//
// Combinators build dataflow graphs out of Deferreds: Map, TryMap, MapErr,
// FlatMap, TryFlatMap, Recover, Apply, and Validate derive one Deferred
// from another; Delay, DelayUntil, and Timeout bind resolution to the
// clock; Combine, Reduce, FirstValue, and FirstResolved aggregate lists;
// Retrying re-runs a task across failures. Errors flow through the graph
// as values until a Recover or MapErr absorbs them.
//
// Cancellation:-
//
// Cancel resolves a Deferred with a CanceledError and wins only if nothing
// else resolved it first. Cancellation also propagates upstream by
// reference: each combinator's downstream retains its source only until it
// resolves, so dropping every handle to the end of a chain lets the
// collector reclaim the whole chain, and producers observe the loss of
// interest through Resolver.NeedsResolution.
package deferred
