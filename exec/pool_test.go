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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmissions(t *testing.T) {
	p := NewPool(4)

	const total = 100
	var ran atomic.Int64
	var wg sync.WaitGroup
	wg.Add(total)
	for i := 0; i < total; i++ {
		p.Submit(func() {
			ran.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	p.StopAndWait()

	assert.EqualValues(t, total, ran.Load())
	assert.EqualValues(t, total, p.SubmittedTasks())
	assert.EqualValues(t, total, p.CompletedTasks())
	assert.Zero(t, p.DroppedTasks())
}

func TestSerialPoolPreservesOrder(t *testing.T) {
	p := NewPool(1)
	defer p.StopAndWait()

	const total = 200
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(total)
	for i := 0; i < total; i++ {
		i := i
		p.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	require.Len(t, order, total)
	for i, v := range order {
		require.Equal(t, i, v, "submission order broken at %d", i)
	}
}

func TestPoolConcurrencyLimit(t *testing.T) {
	const limit = 3
	p := NewPool(limit)
	defer p.StopAndWait()

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		p.Submit(func() {
			defer wg.Done()
			n := running.Add(1)
			defer running.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(limit))
}

func TestPoolStop(t *testing.T) {
	p := NewPool(2)

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		p.Submit(func() {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		})
	}
	p.StopAndWait()

	// every accepted submission ran before StopAndWait returned.
	assert.EqualValues(t, 10, ran.Load())
	require.True(t, p.Stopped())

	p.Submit(func() { t.Error("a submission ran after Stop") })
	assert.EqualValues(t, 1, p.DroppedTasks())
}

func TestPoolSubmitAfter(t *testing.T) {
	p := NewPool(1)
	defer p.StopAndWait()

	done := make(chan time.Time, 1)
	start := time.Now()
	p.SubmitAfter(30*time.Millisecond, func() {
		done <- time.Now()
	})

	fired := <-done
	assert.GreaterOrEqual(t, fired.Sub(start), 30*time.Millisecond)
}

func TestPoolPanicRecovery(t *testing.T) {
	p := NewPool(1)

	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(func() { panic("task panic") })
	p.Submit(func() { wg.Done() })
	wg.Wait()
	p.StopAndWait()

	// the pool survived the panic and kept serving.
	assert.EqualValues(t, 1, p.PanickedTasks())
	assert.EqualValues(t, 2, p.CompletedTasks())
}

func TestPoolNilTask(t *testing.T) {
	p := NewPool(1)
	defer p.StopAndWait()
	assert.PanicsWithValue(t, nilTaskPanicMsg, func() { p.Submit(nil) })
}

func TestPoolOptions(t *testing.T) {
	p := NewPool(0, WithQoS(QoSBackground))
	defer p.StopAndWait()

	assert.Equal(t, QoSBackground, p.QoS())
	assert.Positive(t, p.MaxConcurrency())
}
