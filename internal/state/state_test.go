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

package state

import (
	"sync"
	"testing"
)

func TestZeroValue(t *testing.T) {
	var w Word
	if s := w.Load(); s != Waiting {
		t.Fatalf("the zero Word must be Waiting, got: %d", s)
	}
}

func TestMarkExecuting(t *testing.T) {
	var w Word

	if !w.MarkExecuting() {
		t.Fatal("expected the first MarkExecuting to transition")
	}
	if s := w.Load(); s != Executing {
		t.Fatalf("unexpected state: %d", s)
	}
	if w.MarkExecuting() {
		t.Fatal("expected the second MarkExecuting to be a no-op")
	}
	if s := w.Load(); s != Executing {
		t.Fatalf("unexpected state: %d", s)
	}
}

func TestStartResolving(t *testing.T) {
	t.Run("from waiting", func(t *testing.T) {
		var w Word
		if !w.StartResolving() {
			t.Fatal("expected the claim to be won")
		}
		if s := w.Load(); s != Resolving {
			t.Fatalf("unexpected state: %d", s)
		}
	})

	t.Run("from executing", func(t *testing.T) {
		var w Word
		w.MarkExecuting()
		if !w.StartResolving() {
			t.Fatal("expected the claim to be won")
		}
	})

	t.Run("already resolving", func(t *testing.T) {
		var w Word
		w.StartResolving()
		if w.StartResolving() {
			t.Fatal("expected the second claim to lose")
		}
	})

	t.Run("already resolved", func(t *testing.T) {
		var w Word
		w.StartResolving()
		w.FinishResolving()
		if w.StartResolving() {
			t.Fatal("expected the claim to lose on a resolved word")
		}
		if s := w.Load(); s != Resolved {
			t.Fatalf("unexpected state: %d", s)
		}
	})
}

func TestFinishResolving(t *testing.T) {
	var w Word
	w.StartResolving()
	w.FinishResolving()
	if s := w.Load(); s != Resolved {
		t.Fatalf("unexpected state: %d", s)
	}
	if !IsResolved(w.Load()) {
		t.Fatal("expected IsResolved to report true")
	}
}

func TestFinishResolvingMisuse(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on an unclaimed word")
		}
	}()
	var w Word
	w.FinishResolving()
}

func TestStartResolvingConcurrent(t *testing.T) {
	const claimers = 64

	for i := 0; i < 100; i++ {
		var w Word
		var wg sync.WaitGroup
		var winners [claimers]bool

		start := make(chan struct{})
		wg.Add(claimers)
		for c := 0; c < claimers; c++ {
			go func(c int) {
				defer wg.Done()
				<-start
				winners[c] = w.StartResolving()
			}(c)
		}
		close(start)
		wg.Wait()

		won := 0
		for _, ok := range winners {
			if ok {
				won++
			}
		}
		if won != 1 {
			t.Fatalf("expected exactly one winner, got: %d", won)
		}
	}
}
