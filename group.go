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
	"sync/atomic"

	"github.com/mkarren/deferred/exec"
	"github.com/mkarren/deferred/result"
)

// Aggregators observe a finite list of Deferreds and resolve a single
// downstream. Where a "first" among concurrent resolutions must be picked,
// the winner is whoever reaches the downstream resolver first, not the
// position in the input list.

func pickExecutor[T any](ds []*Deferred[T]) exec.Executor {
	if len(ds) != 0 {
		return ds[0].exec
	}
	return exec.Default()
}

// Combine resolves with the values of all inputs, in input order, once all
// of them succeed. The first failure, by completion time, resolves the
// downstream with that error and the remaining results are ignored.
// An empty input resolves immediately with an empty slice.
func Combine[T any](ds []*Deferred[T]) *Deferred[[]T] {
	e := pickExecutor(ds)
	if len(ds) == 0 {
		return Of(e, result.Of([]T{}))
	}

	dst, r := derive[[]T](e)
	vals := make([]T, len(ds))
	var remaining atomic.Int64
	remaining.Store(int64(len(ds)))

	for i, d := range ds {
		i := i
		d.Observe(func(res result.Result[T]) {
			if err := res.Err(); err != nil {
				r.ResolveErr(err)
				return
			}
			// each slot is written by exactly one observer; the final
			// decrement orders every write before the resolve below.
			vals[i] = res.Value()
			if remaining.Add(-1) == 0 {
				r.ResolveValue(vals)
			}
		})
	}
	r.RetainSource(ds)
	return dst
}

// Reduce left-folds the inputs' values into initial, in input order. Each
// input contributes only after every earlier one resolved successfully;
// the first failure terminates the fold and propagates.
func Reduce[T, U any](ds []*Deferred[T], initial U, f func(U, T) U) *Deferred[U] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	acc := Of(pickExecutor(ds), result.Of(initial))
	for _, d := range ds {
		d := d
		acc = FlatMap(acc, func(u U) *Deferred[U] {
			return Map(d, func(v T) U { return f(u, v) })
		})
	}
	return acc
}

// TryReduce is Reduce for a fallible fold function.
func TryReduce[T, U any](ds []*Deferred[T], initial U, f func(U, T) (U, error)) *Deferred[U] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	acc := Of(pickExecutor(ds), result.Of(initial))
	for _, d := range ds {
		d := d
		acc = FlatMap(acc, func(u U) *Deferred[U] {
			return TryMap(d, func(v T) (U, error) { return f(u, v) })
		})
	}
	return acc
}

// FirstValue resolves with the first input to succeed. When every input
// fails, it resolves with the last failure observed. An empty input
// resolves canceled.
//
// With cancelOthers, the remaining inputs are cancelled once the
// downstream resolves.
func FirstValue[T any](ds []*Deferred[T], cancelOthers bool) *Deferred[T] {
	e := pickExecutor(ds)
	if len(ds) == 0 {
		return Of(e, result.OfErr[T](&CanceledError{Reason: "empty"}))
	}

	dst, r := derive[T](e)
	var failures atomic.Int64
	failures.Store(int64(len(ds)))

	for _, d := range ds {
		d.Observe(func(res result.Result[T]) {
			if !res.Failed() {
				r.Resolve(res)
				return
			}
			// the final failing input carries the last-observed failure.
			if failures.Add(-1) == 0 {
				r.Resolve(res)
			}
		})
	}
	if cancelOthers {
		dst.Observe(func(result.Result[T]) {
			for _, d := range ds {
				d.Cancel("first value resolved")
			}
		})
	}
	r.RetainSource(ds)
	return dst
}

// FirstResolved resolves with the first input to resolve at all, success or
// failure. A winning success carries its input position in the IdxRes; a
// winning failure propagates as the downstream's failure. An empty input
// resolves canceled.
//
// With cancelOthers, the remaining inputs are cancelled once the
// downstream resolves.
func FirstResolved[T any](ds []*Deferred[T], cancelOthers bool) *Deferred[result.IdxRes[T]] {
	e := pickExecutor(ds)
	if len(ds) == 0 {
		return Of(e, result.OfErr[result.IdxRes[T]](&CanceledError{Reason: "empty"}))
	}

	dst, r := derive[result.IdxRes[T]](e)
	for i, d := range ds {
		i := i
		d.Observe(func(res result.Result[T]) {
			if err := res.Err(); err != nil {
				r.ResolveErr(err)
				return
			}
			r.ResolveValue(result.IdxRes[T]{Idx: i, Result: res})
		})
	}
	if cancelOthers {
		dst.Observe(func(result.Result[result.IdxRes[T]]) {
			for _, d := range ds {
				d.Cancel("first resolution won")
			}
		})
	}
	r.RetainSource(ds)
	return dst
}

// InParallel runs f(i) for i in [0, n) on the executor and returns the n
// Deferreds of the results. The task cannot fail; each Deferred resolves
// with f's return value.
func InParallel[T any](e exec.Executor, n int, f func(int) T) []*Deferred[T] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	ds := make([]*Deferred[T], 0, max(n, 0))
	for i := 0; i < n; i++ {
		i := i
		ds = append(ds, WithProducer(e, func(r *Resolver[T]) {
			r.ResolveValue(f(i))
		}))
	}
	return ds
}
