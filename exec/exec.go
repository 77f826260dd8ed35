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

// Package exec provides the closure-submission substrate that Deferred
// handlers and producers run on.
//
// An Executor accepts closures for asynchronous execution, optionally after
// a delay, optionally with a QoS hint. The package ships two implementations:
// the goroutine-per-submission executor returned by Go, and the bounded
// worker pool returned by NewPool. At returns process-wide shared pools
// keyed by QoS class.
package exec

import "time"

// QoS is an advisory priority class carried on executor submissions.
// Higher values denote more latency-sensitive work.
type QoS int

const (
	QoSBackground QoS = iota
	QoSUtility
	QoSDefault
	QoSUserInitiated
	QoSUserInteractive
)

func (q QoS) String() string {
	switch q {
	case QoSBackground:
		return "background"
	case QoSUtility:
		return "utility"
	case QoSDefault:
		return "default"
	case QoSUserInitiated:
		return "user-initiated"
	case QoSUserInteractive:
		return "user-interactive"
	default:
		return "<unknown qos>"
	}
}

// numQoS is the number of defined QoS classes.
const numQoS = int(QoSUserInteractive) + 1

// Executor runs closures asynchronously.
//
// Submissions never run on the caller's stack; every implementation runs
// the closure later on a goroutine it manages (a fresh one or a pool
// worker), never inside the submitting call. The QoS hint is advisory, and
// an implementation may ignore it.
type Executor interface {
	// Submit runs fn asynchronously.
	Submit(fn func())

	// SubmitAfter runs fn asynchronously, no earlier than d from now.
	// A non-positive d is equivalent to Submit.
	SubmitAfter(d time.Duration, fn func())

	// SubmitQoS runs fn asynchronously with a QoS hint overriding the
	// executor's own class.
	SubmitQoS(qos QoS, fn func())

	// QoS returns the nominal QoS class of this executor.
	QoS() QoS
}

// goExecutor spawns one goroutine per submission.
type goExecutor struct {
	qos QoS
}

// Go returns an unbounded executor that runs every submission on its own
// goroutine. The optional qos sets the nominal class; it defaults to
// QoSDefault.
func Go(qos ...QoS) Executor {
	q := QoSDefault
	if len(qos) != 0 {
		q = qos[0]
	}
	return goExecutor{qos: q}
}

func (e goExecutor) Submit(fn func()) {
	if fn == nil {
		panic(nilTaskPanicMsg)
	}
	go fn()
}

func (e goExecutor) SubmitAfter(d time.Duration, fn func()) {
	if fn == nil {
		panic(nilTaskPanicMsg)
	}
	if d <= 0 {
		go fn()
		return
	}
	time.AfterFunc(d, fn)
}

// SubmitQoS spawns a goroutine like Submit; the hint carries no weight
// when every submission already gets its own goroutine.
func (e goExecutor) SubmitQoS(_ QoS, fn func()) {
	e.Submit(fn)
}

func (e goExecutor) QoS() QoS { return e.qos }
