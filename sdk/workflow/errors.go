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

package workflow

import (
	"github.com/mnvu/durango/sdk/internal"
)

// ErrTaskCanceled is returned by Task.Await when the task lost a race, e.g.
// a WaitForExternalEvent whose timeout fired first.
var ErrTaskCanceled = internal.ErrTaskCanceled

// TaskFailedError is returned by Task.Await when the awaited activity or
// sub-orchestration failed. Inspect Failure for the recorded error type and
// message; it is ordinary data and safe to branch on.
type TaskFailedError = internal.TaskFailedError

// NonRetryableError wraps an activity error so retry policies stop
// immediately regardless of remaining attempts.
type NonRetryableError = internal.NonRetryableError

// NonDeterminismError reports that in-flight history no longer matches the
// orchestrator code. It fails the instance permanently.
type NonDeterminismError = internal.NonDeterminismError
