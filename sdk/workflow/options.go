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

// RetryPolicy configures executor-driven retries for activities. Each
// attempt is separated by a durable backoff timer, so the retry loop itself
// is recorded history and replays deterministically.
type RetryPolicy = internal.RetryPolicy

// CallActivityOption configures one Context.CallActivity invocation.
type CallActivityOption = internal.CallActivityOption

// CallSubOrchestratorOption configures one Context.CallSubOrchestrator
// invocation.
type CallSubOrchestratorOption = internal.CallSubOrchestratorOption

var (
	// WithActivityInput serializes the given value as the activity input.
	WithActivityInput = internal.WithActivityInput

	// WithRawActivityInput passes pre-encoded input bytes through unchanged.
	WithRawActivityInput = internal.WithRawActivityInput

	// WithActivityRetryPolicy retries the activity per the policy before the
	// failure surfaces to the orchestrator.
	WithActivityRetryPolicy = internal.WithActivityRetryPolicy

	// WithSubOrchestratorInput serializes the given value as the child input.
	WithSubOrchestratorInput = internal.WithSubOrchestratorInput

	// WithSubOrchestratorRawInput passes pre-encoded child input bytes through.
	WithSubOrchestratorRawInput = internal.WithSubOrchestratorRawInput

	// WithSubOrchestratorInstanceID pins the child instance id instead of the
	// deterministic default derived from the parent.
	WithSubOrchestratorInstanceID = internal.WithSubOrchestratorInstanceID
)
