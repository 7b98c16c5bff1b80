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

package worker

import (
	"github.com/mnvu/durango/sdk/internal"
)

var (
	// ErrOrchestratorNotRegistered surfaces when a task names an
	// orchestrator this worker's registry does not know. The task is
	// redelivered so a worker that carries the registration can take it.
	ErrOrchestratorNotRegistered = internal.ErrOrchestratorNotRegistered

	// ErrActivityNotRegistered surfaces when an activity task names an
	// activity the registry does not know.
	ErrActivityNotRegistered = internal.ErrActivityNotRegistered

	// ErrDuplicateRegistration surfaces when a name is registered twice.
	ErrDuplicateRegistration = internal.ErrDuplicateRegistration
)
