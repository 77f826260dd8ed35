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
	"errors"
	"fmt"
)

// Sentinel targets for errors.Is checks against the failure kinds below.
var (
	ErrCanceled = errors.New("deferred: canceled")
	ErrTimedOut = errors.New("deferred: timed out")
	ErrInvalid  = errors.New("deferred: invalid")

	// ErrAlreadyResolved is returned from Resolver.TryResolve when the
	// deferred has already been resolved, or when every consumer has
	// dropped it.
	ErrAlreadyResolved = errors.New("deferred: already resolved")
)

// CanceledError is the failure of a canceled Deferred. Reason carries the
// string passed to Cancel.
type CanceledError struct {
	Reason string
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("deferred: canceled: %s", e.Reason)
}

func (e *CanceledError) Is(target error) bool { return target == ErrCanceled }

// TimedOutError is the failure of a Deferred whose Timeout deadline elapsed
// before its source resolved.
type TimedOutError struct {
	Reason string
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("deferred: timed out: %s", e.Reason)
}

func (e *TimedOutError) Is(target error) bool { return target == ErrTimedOut }

// InvalidError signals a contract violation: a failed Validate, an empty
// aggregator input, or bad arguments.
type InvalidError struct {
	Message string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("deferred: invalid: %s", e.Message)
}

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

// PanickedError wraps a panic recovered from a transform passed to one of
// the Try combinators.
type PanickedError struct {
	V any
}

func (e *PanickedError) Error() string {
	return fmt.Sprintf("deferred: panic in transform: %v", e.V)
}
