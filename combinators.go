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
	"github.com/mkarren/deferred/exec"
	"github.com/mkarren/deferred/result"
)

// Every combinator follows the same construction: a new downstream cell on
// the source's executor, a handler observed on the source that resolves the
// downstream, and a source retain that's dropped once the downstream
// resolves. Transforms that change the value type are package-level
// functions; methods cannot introduce type parameters.

// derive creates the downstream cell and its resolver.
func derive[T any](e exec.Executor) (*Deferred[T], *Resolver[T]) {
	d := newWaiting[T](e)
	d.stat.MarkExecuting()
	return d, newResolver(d)
}

// protect runs f, converting a returned error or a panic into a failure.
func protect[U any](f func() (U, error)) (res result.Result[U]) {
	defer func() {
		if v := recover(); v != nil {
			res = result.OfErr[U](&PanickedError{V: v})
		}
	}()
	u, err := f()
	if err != nil {
		return result.OfErr[U](err)
	}
	return result.Of(u)
}

// Map returns a Deferred resolving with f applied to src's success value.
// Failures pass through untransformed.
func Map[T, U any](src *Deferred[T], f func(T) U) *Deferred[U] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	dst, r := derive[U](src.exec)
	src.Observe(func(res result.Result[T]) {
		r.Resolve(result.Map(res, f))
	})
	r.RetainSource(src)
	return dst
}

// TryMap is Map for a fallible transform: a returned error, or a panic in
// f, resolves the downstream with that failure.
func TryMap[T, U any](src *Deferred[T], f func(T) (U, error)) *Deferred[U] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	dst, r := derive[U](src.exec)
	src.Observe(func(res result.Result[T]) {
		if err := res.Err(); err != nil {
			r.ResolveErr(err)
			return
		}
		r.Resolve(protect(func() (U, error) { return f(res.Value()) }))
	})
	r.RetainSource(src)
	return dst
}

// MapErr returns a Deferred resolving with f applied to the failure error.
// Successes pass through untransformed.
func (d *Deferred[T]) MapErr(f func(error) error) *Deferred[T] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	dst, r := derive[T](d.exec)
	d.Observe(func(res result.Result[T]) {
		r.Resolve(res.MapErr(f))
	})
	r.RetainSource(d)
	return dst
}

// FlatMap chains src into the Deferred produced by f from its success
// value, forwarding that inner Deferred's resolution downstream. Failures
// of src pass through without invoking f.
func FlatMap[T, U any](src *Deferred[T], f func(T) *Deferred[U]) *Deferred[U] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	dst, r := derive[U](src.exec)
	src.Observe(func(res result.Result[T]) {
		if err := res.Err(); err != nil {
			r.ResolveErr(err)
			return
		}
		forward(r, f(res.Value()))
	})
	r.RetainSource(src)
	return dst
}

// TryFlatMap is FlatMap for a fallible f.
func TryFlatMap[T, U any](src *Deferred[T], f func(T) (*Deferred[U], error)) *Deferred[U] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	dst, r := derive[U](src.exec)
	src.Observe(func(res result.Result[T]) {
		if err := res.Err(); err != nil {
			r.ResolveErr(err)
			return
		}
		nres := protect(func() (*Deferred[U], error) { return f(res.Value()) })
		if err := nres.Err(); err != nil {
			r.ResolveErr(err)
			return
		}
		forward(r, nres.Value())
	})
	r.RetainSource(src)
	return dst
}

// forward resolves r with next's eventual result, keeping next alive until
// then.
func forward[U any](r *Resolver[U], next *Deferred[U]) {
	if next == nil {
		r.ResolveErr(&InvalidError{Message: "nil deferred returned from transform"})
		return
	}
	r.RetainSource(next)
	next.Observe(func(res result.Result[U]) {
		r.Resolve(res)
	})
}

// Recover chains a failed Deferred into the Deferred produced by f from
// the failure error, forwarding that inner Deferred's resolution
// downstream. Successes pass through without invoking f.
func (d *Deferred[T]) Recover(f func(error) *Deferred[T]) *Deferred[T] {
	if f == nil {
		panic(nilCallbackPanicMsg)
	}
	dst, r := derive[T](d.exec)
	d.Observe(func(res result.Result[T]) {
		err := res.Err()
		if err == nil {
			r.Resolve(res)
			return
		}
		forward(r, f(err))
	})
	r.RetainSource(d)
	return dst
}

// Apply waits for src and for transform, then resolves with the transform
// function applied to src's value. A failure of src short-circuits without
// waiting for transform.
func Apply[T, U any](src *Deferred[T], transform *Deferred[func(T) U]) *Deferred[U] {
	if transform == nil {
		panic(nilCallbackPanicMsg)
	}
	dst, r := derive[U](src.exec)
	src.Observe(func(res result.Result[T]) {
		if err := res.Err(); err != nil {
			r.ResolveErr(err)
			return
		}
		transform.Observe(func(fres result.Result[func(T) U]) {
			if err := fres.Err(); err != nil {
				r.ResolveErr(err)
				return
			}
			r.ResolveValue(fres.Value()(res.Value()))
		})
	})
	r.RetainSource([]any{src, transform})
	return dst
}

// Validate fails the Deferred with an InvalidError when pred rejects its
// success value. The optional message overrides the default reason.
func (d *Deferred[T]) Validate(pred func(T) bool, message ...string) *Deferred[T] {
	if pred == nil {
		panic(nilCallbackPanicMsg)
	}
	msg := "validation failed"
	if len(message) != 0 {
		msg = message[0]
	}
	dst, r := derive[T](d.exec)
	d.Observe(func(res result.Result[T]) {
		if !res.Failed() && !pred(res.Value()) {
			r.ResolveErr(&InvalidError{Message: msg})
			return
		}
		r.Resolve(res)
	})
	r.RetainSource(d)
	return dst
}

// EnqueuingOn returns an identity Deferred whose handlers dispatch on e
// instead of on this Deferred's executor.
func (d *Deferred[T]) EnqueuingOn(e exec.Executor) *Deferred[T] {
	dst, r := derive[T](e)
	d.Observe(func(res result.Result[T]) {
		r.Resolve(res)
	})
	r.RetainSource(d)
	return dst
}

// EnqueuingAt returns an identity Deferred whose handlers dispatch on the
// shared executor of the given QoS class.
func (d *Deferred[T]) EnqueuingAt(q exec.QoS) *Deferred[T] {
	return d.EnqueuingOn(exec.At(q))
}
