// Copyright 2026 Minh Vu
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package internal

import (
	"errors"
	"fmt"

	"github.com/mnvu/durango/api"
)

var (
	// ErrTaskCanceled is returned by Task.Await when the task lost a race
	// against a timeout, e.g. WaitForExternalEvent whose timer fired first.
	ErrTaskCanceled = errors.New("task canceled")

	// ErrOrchestratorNotRegistered is returned when an orchestration task
	// names an orchestrator the registry does not know.
	ErrOrchestratorNotRegistered = errors.New("orchestrator not registered")

	// ErrActivityNotRegistered is returned when an activity task names an
	// activity the registry does not know.
	ErrActivityNotRegistered = errors.New("activity not registered")

	// ErrDuplicateRegistration is returned when registering a name twice.
	ErrDuplicateRegistration = errors.New("name already registered")

	// ErrInstanceNotFound is returned by status queries for an unknown
	// instance id.
	ErrInstanceNotFound = errors.New("orchestration instance not found")

	// ErrInstanceAlreadyExists is returned when scheduling an instance under
	// an id that is already in use.
	ErrInstanceAlreadyExists = errors.New("orchestration instance already exists")
)

// errTaskBlocked unwinds orchestrator code when an awaited task cannot
// resolve from the History Log. It is recovered by the executor; the
// accumulated commands become the result of the execution pass.
var errTaskBlocked = errors.New("orchestration is blocked on unresolved tasks")

// errContinuedAsNew unwinds orchestrator code after ContinueAsNew so that no
// statement after the call ever executes.
var errContinuedAsNew = errors.New("orchestration continued as new")

// executionFault wraps an internal replay failure (nondeterminism, registry
// miss, codec fault) raised through the pump. Recovered by the executor and
// recorded as an execution fault, never as a business failure.
type executionFault struct {
	err error
}

// TaskFailedError is returned by Task.Await when the underlying activity or
// sub-orchestration failed. The failure is ordinary recorded data;
// orchestrator code may recover from it and continue.
type TaskFailedError struct {
	Failure *api.Failure
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task failed: %s: %s", e.Failure.ErrorType, e.Failure.ErrorMessage)
}

// NonDeterminismError reports that the replayed History Log does not match
// the sequence of awaits the current orchestrator code issues. It is fatal
// to the instance: the instance is marked Failed and is not retryable.
type NonDeterminismError struct {
	EventID  int32
	Expected string
	Actual   string
}

func (e *NonDeterminismError) Error() string {
	return fmt.Sprintf(
		"nondeterministic orchestrator detected: history event %d expects %s at this point, but the current execution produced %s; orchestrator code changed incompatibly with in-flight history",
		e.EventID, e.Expected, e.Actual,
	)
}

// NonRetryableError marks an activity error that retry policies must not
// retry regardless of remaining attempts.
type NonRetryableError struct {
	Cause error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable error: %v", e.Cause)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Cause
}

// nonRetryableErrorType is the failure tag recorded for NonRetryableError so
// replay-time retry decisions don't depend on Go type identity.
const nonRetryableErrorType = "NonRetryable"

// failureFromError builds the structured failure payload recorded in history.
func failureFromError(err error, kind api.FailureKind) *api.Failure {
	var nd *NonDeterminismError
	if errors.As(err, &nd) {
		return &api.Failure{
			Kind:         api.FailureExecution,
			ErrorType:    "NonDeterminismError",
			ErrorMessage: nd.Error(),
		}
	}
	var nre *NonRetryableError
	if errors.As(err, &nre) {
		return &api.Failure{
			Kind:         kind,
			ErrorType:    nonRetryableErrorType,
			ErrorMessage: err.Error(),
		}
	}
	var tfe *TaskFailedError
	if errors.As(err, &tfe) {
		// Propagating an already-recorded task failure keeps the original tag.
		return &api.Failure{
			Kind:         tfe.Failure.Kind,
			ErrorType:    tfe.Failure.ErrorType,
			ErrorMessage: err.Error(),
		}
	}
	return &api.Failure{
		Kind:         kind,
		ErrorType:    fmt.Sprintf("%T", err),
		ErrorMessage: err.Error(),
	}
}
