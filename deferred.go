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
	"fmt"
	"sync/atomic"

	"github.com/mkarren/deferred/exec"
	"github.com/mkarren/deferred/internal/state"
	"github.com/mkarren/deferred/result"
)

// panic messages
const (
	nilCallbackPanicMsg = "deferred: the provided callback is nil"
	nilProducerPanicMsg = "deferred: the provided producer is nil"
)

// State is the externally visible resolution state of a Deferred.
type State int

const (
	// the order here matters
	StateWaiting State = iota
	StateExecuting
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateExecuting:
		return "executing"
	case StateResolved:
		return "resolved"
	default:
		return "<unknown>"
	}
}

// waiter is one registered observer, owned by the waiter stack until it's
// delivered.
type waiter[T any] struct {
	handler func(result.Result[T])
	qos     exec.QoS
	hasQoS  bool
	next    *waiter[T]
}

// Deferred is a handle to a future single-assignment result.
//
// Once resolved, the result is immutable and is broadcast to every
// registered observer. Handlers are never called synchronously from
// Observe or from the resolving goroutine; they're always submitted to
// the Deferred's executor.
//
// The zero value is not usable; create Deferreds through Resolved, Failed,
// Of, WithProducer, or a combinator.
type Deferred[T any] struct {
	exec exec.Executor

	stat state.Word

	// head of the intrusive waiter stack.
	// nil means empty and still accepting observers.
	// &d.closed means resolved and drained; res is safe to read.
	waiters atomic.Pointer[waiter[T]]

	// closed is the sentinel terminal of the waiter stack. only its
	// address is meaningful; it's distinct from nil and from every node
	// an observer can allocate.
	closed waiter[T]

	// holds the final result.
	// written once by the goroutine that wins the resolving claim, before
	// the waiters head is swapped to the closed sentinel.
	// don't read it unless the waiters head is known to be closed.
	res result.Result[T]

	// an upstream source retained on behalf of pending observers.
	// set by combinators during construction, dropped at resolution.
	source atomic.Pointer[any]
}

func newWaiting[T any](e exec.Executor) *Deferred[T] {
	if e == nil {
		e = exec.Default()
	}
	return &Deferred[T]{exec: e}
}

// Of returns a Deferred on executor e, pre-resolved with res.
func Of[T any](e exec.Executor, res result.Result[T]) *Deferred[T] {
	d := newWaiting[T](e)
	d.stat.StartResolving()
	d.res = res
	d.stat.FinishResolving()
	d.waiters.Store(&d.closed)
	return d
}

// Resolved returns a Deferred pre-resolved with val, on the default
// executor.
func Resolved[T any](val T) *Deferred[T] {
	return Of(nil, result.Of(val))
}

// Failed returns a Deferred pre-resolved with err, on the default executor.
func Failed[T any](err error) *Deferred[T] {
	return Of(nil, result.OfErr[T](err))
}

// WithProducer creates a waiting Deferred and submits producer to e,
// handing it the write capability. The producer is expected to resolve
// through the Resolver eventually; if it never does, the Deferred stays
// unresolved until it's dropped.
//
// The optional qos hints the class the producer is submitted at.
func WithProducer[T any](e exec.Executor, producer func(*Resolver[T]), qos ...exec.QoS) *Deferred[T] {
	if producer == nil {
		panic(nilProducerPanicMsg)
	}
	d := newWaiting[T](e)
	r := newResolver(d)
	d.stat.MarkExecuting()
	if len(qos) != 0 {
		r.qos = qos[0]
		d.exec.SubmitQoS(qos[0], func() { producer(r) })
	} else {
		r.qos = d.exec.QoS()
		d.exec.Submit(func() { producer(r) })
	}
	return d
}

// Executor returns the executor this Deferred dispatches its handlers on.
func (d *Deferred[T]) Executor() exec.Executor { return d.exec }

// State returns the externally visible resolution state.
// The transient internal resolving step is reported as Executing.
func (d *Deferred[T]) State() State {
	switch d.stat.Load() {
	case state.Waiting:
		return StateWaiting
	case state.Resolved:
		return StateResolved
	default:
		return StateExecuting
	}
}

// Execute marks a Waiting Deferred as Executing. It's a hint for producers
// that watch the state; it has no effect once the state moved past Waiting.
func (d *Deferred[T]) Execute() *Deferred[T] {
	d.stat.MarkExecuting()
	return d
}

func (d *Deferred[T]) String() string {
	if res, ok := d.Peek(); ok {
		return fmt.Sprintf("deferred(%v)", res)
	}
	return fmt.Sprintf("deferred(%s)", d.State())
}

// Observe registers handler to be called exactly once with the final
// result. If the Deferred is already resolved, the handler is submitted
// to the executor immediately. Thread-safe and lock-free.
func (d *Deferred[T]) Observe(handler func(result.Result[T])) {
	if handler == nil {
		panic(nilCallbackPanicMsg)
	}
	d.enqueue(&waiter[T]{handler: handler})
}

// ObserveQoS is Observe with a QoS hint applied to the handler's
// submission.
func (d *Deferred[T]) ObserveQoS(qos exec.QoS, handler func(result.Result[T])) {
	if handler == nil {
		panic(nilCallbackPanicMsg)
	}
	d.enqueue(&waiter[T]{handler: handler, qos: qos, hasQoS: true})
}

// OnValue registers a handler called only when the Deferred succeeds.
func (d *Deferred[T]) OnValue(handler func(T)) {
	if handler == nil {
		panic(nilCallbackPanicMsg)
	}
	d.Observe(func(res result.Result[T]) {
		if !res.Failed() {
			handler(res.Value())
		}
	})
}

// OnError registers a handler called only when the Deferred fails.
func (d *Deferred[T]) OnError(handler func(error)) {
	if handler == nil {
		panic(nilCallbackPanicMsg)
	}
	d.Observe(func(res result.Result[T]) {
		if err := res.Err(); err != nil {
			handler(err)
		}
	})
}

// enqueue pushes n onto the waiter stack, or dispatches it directly when
// the stack is already closed.
func (d *Deferred[T]) enqueue(n *waiter[T]) {
	for {
		h := d.waiters.Load()
		if h == &d.closed {
			// already resolved and drained; the result is published.
			d.dispatch(n)
			return
		}
		n.next = h
		if d.waiters.CompareAndSwap(h, n) {
			return
		}
	}
}

// dispatch submits the waiter's handler to the executor with the final
// result, then severs the node.
// only called after the waiters head is closed, so res is readable.
func (d *Deferred[T]) dispatch(n *waiter[T]) {
	res := d.res
	handler := n.handler
	if n.hasQoS {
		d.exec.SubmitQoS(n.qos, func() { handler(res) })
	} else {
		d.exec.Submit(func() { handler(res) })
	}
	n.handler = nil
	n.next = nil
}

// resolve attempts the single resolution of this Deferred.
// It returns true only for the call that won; the waiter stack is drained
// in FIFO registration order on that path.
func (d *Deferred[T]) resolve(res result.Result[T]) bool {
	if !d.stat.StartResolving() {
		return false
	}

	// the resolving claim is won; publish the result, then close the
	// stack. enqueue attempts racing this swap either land before it and
	// are drained below, or observe the sentinel and dispatch directly.
	d.res = res
	d.stat.FinishResolving()
	head := d.waiters.Swap(&d.closed)

	// the stack holds waiters newest-first; reverse to restore FIFO
	// registration order before dispatching.
	var fifo *waiter[T]
	for head != nil {
		next := head.next
		head.next = fifo
		fifo = head
		head = next
	}
	for n := fifo; n != nil; {
		next := n.next
		d.dispatch(n)
		n = next
	}

	// drop the retained upstream; pending observers no longer need it.
	d.source.Store(nil)
	return true
}

// retainSource keeps x reachable until this Deferred is resolved.
func (d *Deferred[T]) retainSource(x any) {
	if d.waiters.Load() == &d.closed {
		return
	}
	d.source.Store(&x)
	// resolution may have raced the store; don't hold x past it.
	if d.waiters.Load() == &d.closed {
		d.source.Store(nil)
	}
}

// Cancel resolves this Deferred with a CanceledError carrying reason.
// It returns true only if this call was the one that resolved it.
func (d *Deferred[T]) Cancel(reason string) bool {
	return d.resolve(result.OfErr[T](&CanceledError{Reason: reason}))
}

// Peek returns the final result without blocking. ok is false while the
// Deferred is unresolved.
func (d *Deferred[T]) Peek() (res result.Result[T], ok bool) {
	if d.waiters.Load() == &d.closed {
		return d.res, true
	}
	return res, false
}

// Get blocks until the Deferred is resolved and returns the final result.
//
// Calling Get from a handler running on the same serial executor that the
// awaited Deferred resolves on will deadlock; that's on the caller.
func (d *Deferred[T]) Get() result.Result[T] {
	if res, ok := d.Peek(); ok {
		return res
	}
	done := make(chan struct{})
	d.Observe(func(result.Result[T]) { close(done) })
	<-done
	res, _ := d.Peek()
	return res
}

// Value blocks until resolution and returns the success value.
// ok is false when the Deferred failed.
func (d *Deferred[T]) Value() (val T, ok bool) {
	res := d.Get()
	return res.Value(), !res.Failed()
}

// Err blocks until resolution and returns the failure error, or nil when
// the Deferred succeeded.
func (d *Deferred[T]) Err() error {
	return d.Get().Err()
}

// Done returns a channel that's closed once the Deferred is resolved.
// Each call allocates a fresh channel.
func (d *Deferred[T]) Done() <-chan struct{} {
	done := make(chan struct{})
	d.Observe(func(result.Result[T]) { close(done) })
	return done
}
