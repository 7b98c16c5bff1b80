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
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
)

// ErrHistoryConflict reports a lost optimistic-concurrency race on an
// instance's history subject: another writer appended between read and
// append. The caller re-reads and re-runs the pass.
var ErrHistoryConflict = errors.New("history log conflict: concurrent append detected")

// HistoryLog is the append-only per-instance event log on a JetStream
// stream. Each instance owns one subject; appends from the orchestration
// pass carry an expected-last-subject-sequence so a stale pass can never
// clobber events that raced in.
type HistoryLog struct {
	conn   *Conn
	serder serde.BinarySerde
}

func NewHistoryLog(conn *Conn, serder serde.BinarySerde) *HistoryLog {
	return &HistoryLog{conn: conn, serder: serder}
}

func historySubject(id api.InstanceID) string {
	return fmt.Sprintf(api.HistoryPublishSubjectPattern, id)
}

// Read returns the instance's full history in log order together with the
// stream sequence of the last record, the token for a later guarded Append.
// A fresh instance yields an empty slice and sequence zero.
func (l *HistoryLog) Read(ctx context.Context, id api.InstanceID) ([]*api.HistoryEvent, uint64, error) {
	js, err := l.conn.JS()
	if err != nil {
		return nil, 0, err
	}

	subject := historySubject(id)
	consumer, err := js.OrderedConsumer(ctx, api.HistoryStream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("create history reader for %q: %w", id, err)
	}

	info, err := consumer.Info(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("history reader info for %q: %w", id, err)
	}
	remaining := info.NumPending
	if remaining == 0 {
		return nil, 0, nil
	}

	events := make([]*api.HistoryEvent, 0, remaining)
	var lastSeq uint64
	for remaining > 0 {
		batch := min(remaining, 256)
		msgs, err := consumer.Fetch(int(batch), jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			return nil, 0, fmt.Errorf("fetch history batch for %q: %w", id, err)
		}
		for msg := range msgs.Messages() {
			var e api.HistoryEvent
			if err := l.serder.DeserializeBinary(msg.Data(), &e); err != nil {
				return nil, 0, fmt.Errorf("decode history event for %q: %w", id, err)
			}
			meta, err := msg.Metadata()
			if err != nil {
				return nil, 0, fmt.Errorf("history message metadata for %q: %w", id, err)
			}
			lastSeq = meta.Sequence.Stream
			events = append(events, &e)
			remaining--
		}
		if msgs.Error() != nil {
			return nil, 0, fmt.Errorf("drain history batch for %q: %w", id, msgs.Error())
		}
	}
	return events, lastSeq, nil
}

// Append writes events to the instance's subject. The first write is guarded
// by expectedLastSeq (the sequence returned by Read, zero for a fresh
// subject); subsequent writes chain off the previous ack, so the whole batch
// lands contiguously or fails with ErrHistoryConflict.
func (l *HistoryLog) Append(ctx context.Context, id api.InstanceID, events []*api.HistoryEvent, expectedLastSeq uint64) (uint64, error) {
	subject := historySubject(id)
	last := expectedLastSeq
	for _, e := range events {
		data, err := l.serder.SerializeBinary(e)
		if err != nil {
			return last, fmt.Errorf("encode history event for %q: %w", id, err)
		}
		msg := &nats.Msg{
			Subject: subject,
			Data:    data,
			Header:  nats.Header{api.EventKindHeader: []string{e.Kind()}},
		}
		ack, err := l.conn.PublishMsgJS(ctx, msg, jetstream.WithExpectLastSequencePerSubject(last))
		if err != nil {
			if isWrongLastSequence(err) {
				return last, fmt.Errorf("append to %q at seq %d: %w", id, last, ErrHistoryConflict)
			}
			return last, err
		}
		last = ack.Sequence
	}
	return last, nil
}

// AppendUnguarded writes events without a sequence expectation. Event
// producers (activity completions, external events, terminations) use it:
// they only ever add new records, so ordering against the orchestration
// pass is settled by the log itself.
func (l *HistoryLog) AppendUnguarded(ctx context.Context, id api.InstanceID, events []*api.HistoryEvent) error {
	subject := historySubject(id)
	for _, e := range events {
		data, err := l.serder.SerializeBinary(e)
		if err != nil {
			return fmt.Errorf("encode history event for %q: %w", id, err)
		}
		msg := &nats.Msg{
			Subject: subject,
			Data:    data,
			Header:  nats.Header{api.EventKindHeader: []string{e.Kind()}},
		}
		if _, err := l.conn.PublishMsgJS(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Reset purges the instance's subject and seeds it with the given events.
// ContinueAsNew uses it to retire the old execution's log wholesale.
func (l *HistoryLog) Reset(ctx context.Context, id api.InstanceID, seed []*api.HistoryEvent) error {
	js, err := l.conn.JS()
	if err != nil {
		return err
	}
	stream, err := js.Stream(ctx, api.HistoryStream)
	if err != nil {
		return fmt.Errorf("get history stream: %w", err)
	}
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(historySubject(id))); err != nil {
		return fmt.Errorf("purge history for %q: %w", id, err)
	}
	return l.AppendUnguarded(ctx, id, seed)
}

func isWrongLastSequence(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}
