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

package natz

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mnvu/durango/api"
)

// EnsureTopology creates or updates the streams and buckets the runtime
// needs. Safe to call from every worker and client at startup.
//
// History keeps everything (limits policy, no caps): it is the source of
// truth for replay. The two task streams are work queues; a task message is
// consumed by exactly one worker.
func (c *Conn) EnsureTopology(ctx context.Context) error {
	if _, err := c.EnsureStream(ctx, jetstream.StreamConfig{
		Name:      api.HistoryStream,
		Subjects:  []string{api.HistoryFilterSubjectPattern},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}); err != nil {
		return fmt.Errorf("ensure history stream: %w", err)
	}

	if _, err := c.EnsureStream(ctx, jetstream.StreamConfig{
		Name:      api.OrchestrationTasksStream,
		Subjects:  []string{api.OrchestrationTaskFilterSubjectPattern},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	}); err != nil {
		return fmt.Errorf("ensure orchestration task stream: %w", err)
	}

	if _, err := c.EnsureStream(ctx, jetstream.StreamConfig{
		Name:      api.ActivityTasksStream,
		Subjects:  []string{api.ActivityTaskFilterSubjectPattern},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	}); err != nil {
		return fmt.Errorf("ensure activity task stream: %w", err)
	}

	if _, err := c.EnsureKV(ctx, jetstream.KeyValueConfig{
		Bucket:  api.StatusBucket,
		History: 1,
	}); err != nil {
		return fmt.Errorf("ensure status bucket: %w", err)
	}
	return nil
}
