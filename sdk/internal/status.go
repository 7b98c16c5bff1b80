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
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
	"github.com/mnvu/durango/internal/natz"
)

// statusStore keeps per-instance OrchestrationMetadata in a KV bucket. It is
// a projection for queries and completion waits; replay never reads it.
type statusStore struct {
	conn   *natz.Conn
	serder serde.BinarySerde
}

func newStatusStore(conn *natz.Conn, serder serde.BinarySerde) *statusStore {
	return &statusStore{conn: conn, serder: serder}
}

func (s *statusStore) get(ctx context.Context, id api.InstanceID) (*api.OrchestrationMetadata, error) {
	entry, err := s.conn.Get(ctx, api.StatusBucket, string(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fmt.Errorf("%q: %w", id, ErrInstanceNotFound)
		}
		return nil, fmt.Errorf("get status for %q: %w", id, err)
	}
	var meta api.OrchestrationMetadata
	if err := s.serder.DeserializeBinary(entry.Value(), &meta); err != nil {
		return nil, fmt.Errorf("decode status for %q: %w", id, err)
	}
	return &meta, nil
}

func (s *statusStore) put(ctx context.Context, meta *api.OrchestrationMetadata) error {
	raw, err := s.serder.SerializeBinary(meta)
	if err != nil {
		return fmt.Errorf("encode status for %q: %w", meta.InstanceID, err)
	}
	if _, err := s.conn.Set(ctx, api.StatusBucket, string(meta.InstanceID), raw); err != nil {
		return fmt.Errorf("put status for %q: %w", meta.InstanceID, err)
	}
	return nil
}

// update applies mutate to the stored record, or to a zero record when none
// exists yet.
func (s *statusStore) update(ctx context.Context, id api.InstanceID, mutate func(*api.OrchestrationMetadata)) error {
	meta, err := s.get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrInstanceNotFound) {
			return err
		}
		meta = &api.OrchestrationMetadata{InstanceID: id}
	}
	mutate(meta)
	return s.put(ctx, meta)
}

// watch blocks until the instance reaches a terminal status or ctx expires.
func (s *statusStore) watch(ctx context.Context, id api.InstanceID) (*api.OrchestrationMetadata, error) {
	watcher, err := s.conn.WatchKV(ctx, api.StatusBucket, string(id), jetstream.IncludeHistory())
	if err != nil {
		return nil, err
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case entry := <-watcher.Updates():
			if entry == nil {
				// Initial snapshot done; keep waiting for live updates.
				continue
			}
			var meta api.OrchestrationMetadata
			if err := s.serder.DeserializeBinary(entry.Value(), &meta); err != nil {
				return nil, fmt.Errorf("decode status update for %q: %w", id, err)
			}
			if meta.RuntimeStatus.IsTerminal() {
				return &meta, nil
			}
		}
	}
}
