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

package exec

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkarren/deferred/internal/queue"
)

// panic messages
const (
	nilTaskPanicMsg = "exec: the provided task is nil"
)

const (
	queueInitialSize = 64
	queueMaxChunk    = 16 * 1024
)

// Option configures a Pool.
type Option func(*Pool)

// WithQoS sets the pool's nominal QoS class.
func WithQoS(q QoS) Option {
	return func(p *Pool) { p.qos = q }
}

// WithoutPanicRecovery disables panic recovery in workers.
// With recovery disabled, a panicking task takes the process down.
func WithoutPanicRecovery() Option {
	return func(p *Pool) { p.panicRecovery = false }
}

// Pool is a bounded worker-pool Executor.
//
// Submissions beyond the concurrency limit queue in FIFO order on an
// unbounded chunked buffer and are drained as workers free up. Workers are
// launched on demand and exit when the queue runs dry.
//
// A Pool with a concurrency limit of 1 is a serial executor: submissions
// run one at a time, in submission order.
type Pool struct {
	mutex          sync.Mutex
	qos            QoS
	maxConcurrency int
	panicRecovery  bool

	closed          atomic.Bool
	workerCount     atomic.Int64
	workerWaitGroup sync.WaitGroup

	tasks *queue.FIFO[func()] // guarded by mutex

	submittedTaskCount atomic.Uint64
	completedTaskCount atomic.Uint64
	panickedTaskCount  atomic.Uint64
	droppedTaskCount   atomic.Uint64
}

// NewPool creates a worker pool running at most maxConcurrency submissions
// concurrently. A maxConcurrency of 0 or less means unbounded.
func NewPool(maxConcurrency int, options ...Option) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = math.MaxInt
	}
	p := &Pool{
		qos:            QoSDefault,
		maxConcurrency: maxConcurrency,
		panicRecovery:  true,
		tasks:          queue.New[func()](queueInitialSize, queueMaxChunk),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *Pool) QoS() QoS { return p.qos }

// MaxConcurrency returns the pool's concurrency limit.
func (p *Pool) MaxConcurrency() int { return p.maxConcurrency }

// RunningWorkers returns the number of active workers.
func (p *Pool) RunningWorkers() int64 { return p.workerCount.Load() }

// SubmittedTasks returns the total number of submissions accepted so far.
func (p *Pool) SubmittedTasks() uint64 { return p.submittedTaskCount.Load() }

// CompletedTasks returns the number of submissions that finished running.
func (p *Pool) CompletedTasks() uint64 {
	return p.completedTaskCount.Load() + p.panickedTaskCount.Load()
}

// PanickedTasks returns the number of submissions that panicked.
func (p *Pool) PanickedTasks() uint64 { return p.panickedTaskCount.Load() }

// DroppedTasks returns the number of submissions rejected after Stop.
func (p *Pool) DroppedTasks() uint64 { return p.droppedTaskCount.Load() }

// WaitingTasks returns the number of submissions queued behind busy workers.
func (p *Pool) WaitingTasks() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.tasks.Len()
}

// Stopped reports whether Stop has been called.
func (p *Pool) Stopped() bool { return p.closed.Load() }

func (p *Pool) Submit(fn func()) {
	if fn == nil {
		panic(nilTaskPanicMsg)
	}

	p.mutex.Lock()
	if p.closed.Load() {
		p.mutex.Unlock()
		p.droppedTaskCount.Add(1)
		return
	}
	p.submittedTaskCount.Add(1)

	if int(p.workerCount.Load()) >= p.maxConcurrency {
		p.tasks.Write(fn)
		p.mutex.Unlock()
		return
	}

	p.workerCount.Add(1)
	p.workerWaitGroup.Add(1)

	// route through the queue when it's non-empty, so queued submissions
	// keep their FIFO position ahead of this one.
	if p.tasks.Len() > 0 {
		p.tasks.Write(fn)
		fn, _ = p.tasks.Read()
	}
	p.mutex.Unlock()

	go p.worker(fn)
}

func (p *Pool) SubmitAfter(d time.Duration, fn func()) {
	if fn == nil {
		panic(nilTaskPanicMsg)
	}
	if d <= 0 {
		p.Submit(fn)
		return
	}
	time.AfterFunc(d, func() { p.Submit(fn) })
}

// SubmitQoS submits like Submit; a single pool runs at one class, so the
// hint is ignored. The global per-class executors returned by At do honor
// the hint by re-routing.
func (p *Pool) SubmitQoS(_ QoS, fn func()) {
	p.Submit(fn)
}

// Stop rejects further submissions. Already-queued submissions still run.
func (p *Pool) Stop() {
	p.closed.Store(true)
}

// StopAndWait stops the pool and blocks until every accepted submission has
// finished running.
func (p *Pool) StopAndWait() {
	p.Stop()
	p.workerWaitGroup.Wait()
}

func (p *Pool) worker(task func()) {
	for {
		if task != nil {
			p.run(task)
		}
		var ok bool
		if task, ok = p.readTask(); !ok {
			return
		}
	}
}

func (p *Pool) run(task func()) {
	if !p.panicRecovery {
		task()
		p.completedTaskCount.Add(1)
		return
	}
	defer func() {
		if v := recover(); v != nil {
			p.panickedTaskCount.Add(1)
		}
	}()
	task()
	p.completedTaskCount.Add(1)
}

func (p *Pool) readTask() (func(), bool) {
	p.mutex.Lock()
	task, err := p.tasks.Read()
	if err != nil {
		p.workerCount.Add(-1)
		p.mutex.Unlock()
		p.workerWaitGroup.Done()
		return nil, false
	}
	p.mutex.Unlock()
	return task, true
}
