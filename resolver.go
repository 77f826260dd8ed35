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
	"weak"

	"github.com/mkarren/deferred/exec"
	"github.com/mkarren/deferred/result"
)

// Resolver is the producer-side write capability for one Deferred.
//
// It holds only a weak reference to its Deferred: when every consumer has
// dropped the Deferred before resolution, the cell becomes unreachable and
// collectible, NeedsResolution starts returning false, and the producer may
// abandon its work. Resolution attempts against a collected cell are no-ops
// that return false.
type Resolver[T any] struct {
	d   weak.Pointer[Deferred[T]]
	qos exec.QoS
}

func newResolver[T any](d *Deferred[T]) *Resolver[T] {
	return &Resolver[T]{d: weak.Make(d), qos: d.exec.QoS()}
}

// Resolve attempts to resolve the Deferred with res.
// It returns true only if this call was the one that resolved it; any
// later attempt, and any attempt after the consumers dropped the cell,
// returns false.
func (r *Resolver[T]) Resolve(res result.Result[T]) bool {
	d := r.d.Value()
	if d == nil {
		return false
	}
	return d.resolve(res)
}

// ResolveValue resolves the Deferred with a success holding val.
func (r *Resolver[T]) ResolveValue(val T) bool {
	return r.Resolve(result.Of(val))
}

// ResolveErr resolves the Deferred with a failure holding err.
func (r *Resolver[T]) ResolveErr(err error) bool {
	return r.Resolve(result.OfErr[T](err))
}

// TryResolve is Resolve surfacing the losing path as ErrAlreadyResolved.
func (r *Resolver[T]) TryResolve(res result.Result[T]) error {
	if !r.Resolve(res) {
		return ErrAlreadyResolved
	}
	return nil
}

// Cancel resolves the Deferred with a CanceledError carrying reason.
func (r *Resolver[T]) Cancel(reason string) bool {
	return r.ResolveErr(&CanceledError{Reason: reason})
}

// NeedsResolution reports whether resolving is still worthwhile: the
// Deferred is not yet resolved and some consumer still holds it.
// Producers polling a long task use this to bail out once the consumers
// have gone away.
func (r *Resolver[T]) NeedsResolution() bool {
	d := r.d.Value()
	if d == nil {
		return false
	}
	return d.waiters.Load() != &d.closed
}

// QoS returns the QoS hint the producer was submitted at.
func (r *Resolver[T]) QoS() exec.QoS { return r.qos }

// RetainSource keeps x strongly reachable until the Deferred is resolved.
// Combinators use it to keep their upstream alive while observers are
// pending; the retain is dropped at resolution, so it never forms a cycle.
func (r *Resolver[T]) RetainSource(x any) {
	if d := r.d.Value(); d != nil {
		d.retainSource(x)
	}
}
