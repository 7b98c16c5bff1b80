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

package api

// NATS Stream Names
const (
	HistoryStream            = "ORCHESTRATION_HISTORY"
	OrchestrationTasksStream = "ORCHESTRATION_TASKS"
	ActivityTasksStream      = "ACTIVITY_TASKS"
)

// NATS Subject Prefixes
const (
	HistorySubjectPrefix           = "history"
	OrchestrationTaskSubjectPrefix = "orchestration.tasks"
	ActivityTaskSubjectPrefix      = "activity.tasks"
)

// NATS Subject Formats (instanceID fills the verb)
const (
	HistoryPublishSubjectPattern           = HistorySubjectPrefix + ".%s"
	OrchestrationTaskPublishSubjectPattern = OrchestrationTaskSubjectPrefix + ".%s"
	ActivityTaskPublishSubjectPattern      = ActivityTaskSubjectPrefix + ".%s"
)

// NATS Subject Filters
const (
	HistoryFilterSubjectPattern           = HistorySubjectPrefix + ".>"
	OrchestrationTaskFilterSubjectPattern = OrchestrationTaskSubjectPrefix + ".>"
	ActivityTaskFilterSubjectPattern      = ActivityTaskSubjectPrefix + ".>"
)

// Consumer Names
const (
	OrchestrationTaskWorkerConsumer = "worker-orchestration-tasks"
	ActivityTaskWorkerConsumer      = "worker-activity-tasks"
)

// KeyValue Bucket Names
const (
	StatusBucket = "orchestration-status"
)

// JetStream Headers
const (
	EventKindHeader = "Durango-Event-Kind"
)
