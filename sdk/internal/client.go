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
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
	"github.com/mnvu/durango/internal/natz"
)

// Client starts and manages orchestration instances from outside the
// execution sandbox. Everything it does reduces to History Log appends and
// wake messages; workers own all execution.
type Client struct {
	conn    *natz.Conn
	serder  serde.BinarySerde
	history *natz.HistoryLog
	status  *statusStore
	logger  *slog.Logger
}

// ClientOptions tunes a client. Zero values take defaults.
type ClientOptions struct {
	Logger *slog.Logger
}

func NewClient(conn *natz.Conn, serder serde.BinarySerde, opts *ClientOptions) (*Client, error) {
	if conn == nil {
		return nil, fmt.Errorf("client requires a NATS connection")
	}
	if serder == nil {
		serder = serde.NewMsgpackSerde()
	}
	var logger *slog.Logger
	if opts != nil {
		logger = opts.Logger
	}
	return &Client{
		conn:    conn,
		serder:  serder,
		history: natz.NewHistoryLog(conn, serder),
		status:  newStatusStore(conn, serder),
		logger:  defaultLogger(logger),
	}, nil
}

// ScheduleOptions is the resolved form of a ScheduleOption list. Alternate
// backends (the test emulator) resolve options the same way the client does.
type ScheduleOptions struct {
	input      any
	hasInput   bool
	rawInput   []byte
	hasRaw     bool
	instanceID api.InstanceID
}

// ApplyScheduleOptions folds an option list into its resolved form.
func ApplyScheduleOptions(opts []ScheduleOption) (*ScheduleOptions, error) {
	options := new(ScheduleOptions)
	for _, configure := range opts {
		if err := configure(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// InstanceID returns the pinned instance id, empty when none was set.
func (o *ScheduleOptions) InstanceID() api.InstanceID { return o.instanceID }

// EncodeInput produces the input payload bytes.
func (o *ScheduleOptions) EncodeInput(serder serde.BinarySerde) ([]byte, error) {
	if o.hasRaw {
		return o.rawInput, nil
	}
	if !o.hasInput {
		return nil, nil
	}
	raw, err := serder.SerializeBinary(o.input)
	if err != nil {
		return nil, fmt.Errorf("encode orchestration input: %w", err)
	}
	return raw, nil
}

// ScheduleOption configures one ScheduleOrchestration call.
type ScheduleOption func(*ScheduleOptions) error

// WithInput serializes the given value as the orchestration input.
func WithInput(input any) ScheduleOption {
	return func(o *ScheduleOptions) error {
		o.input = input
		o.hasInput = true
		return nil
	}
}

// WithRawInput passes pre-encoded input bytes through unchanged.
func WithRawInput(raw []byte) ScheduleOption {
	return func(o *ScheduleOptions) error {
		o.rawInput = raw
		o.hasRaw = true
		return nil
	}
}

// WithInstanceID pins the instance id. Scheduling an id that is already in
// use fails with ErrInstanceAlreadyExists.
func WithInstanceID(id api.InstanceID) ScheduleOption {
	return func(o *ScheduleOptions) error {
		o.instanceID = id
		return nil
	}
}

// ScheduleOrchestration creates a new instance of the named orchestrator and
// wakes a worker to run its first pass. The orchestrator parameter is either
// the registered name or the function itself.
func (c *Client) ScheduleOrchestration(ctx context.Context, orchestrator any, opts ...ScheduleOption) (api.InstanceID, error) {
	options, err := ApplyScheduleOptions(opts)
	if err != nil {
		return "", err
	}
	name, err := taskName(orchestrator)
	if err != nil {
		return "", err
	}
	rawInput, err := options.EncodeInput(c.serder)
	if err != nil {
		return "", err
	}

	id := options.instanceID
	if id == "" {
		uid, err := uuid.NewV4()
		if err != nil {
			return "", fmt.Errorf("generate instance id: %w", err)
		}
		id = api.InstanceID(uid.String())
	}

	now := time.Now().UTC()
	seed := &api.HistoryEvent{
		EventID:          -1,
		Timestamp:        now,
		ExecutionStarted: &api.ExecutionStarted{Name: name, Input: rawInput},
	}
	if _, err := c.history.Append(ctx, id, []*api.HistoryEvent{seed}, 0); err != nil {
		if errors.Is(err, natz.ErrHistoryConflict) {
			return "", fmt.Errorf("%q: %w", id, ErrInstanceAlreadyExists)
		}
		return "", err
	}
	if err := c.status.put(ctx, &api.OrchestrationMetadata{
		InstanceID:    id,
		Name:          name,
		RuntimeStatus: api.StatusPending,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Input:         rawInput,
	}); err != nil {
		return "", err
	}
	if err := c.publishWake(ctx, id); err != nil {
		return "", err
	}
	c.logger.Info("scheduled orchestration", "instance_id", id, "orchestration", name)
	return id, nil
}

type raiseEventOptions struct {
	payload    any
	hasPayload bool
	raw        []byte
	hasRaw     bool
}

// RaiseEventOption configures one RaiseEvent call.
type RaiseEventOption func(*raiseEventOptions) error

// WithEventPayload serializes the given value as the event payload.
func WithEventPayload(payload any) RaiseEventOption {
	return func(o *raiseEventOptions) error {
		o.payload = payload
		o.hasPayload = true
		return nil
	}
}

// WithRawEventPayload passes pre-encoded payload bytes through unchanged.
func WithRawEventPayload(raw []byte) RaiseEventOption {
	return func(o *raiseEventOptions) error {
		o.raw = raw
		o.hasRaw = true
		return nil
	}
}

// RaiseEvent appends an external event to the instance's history and wakes
// it. Events raised before the orchestrator waits are buffered in arrival
// order; raising against a completed instance appends a record that no
// pass will ever observe.
func (c *Client) RaiseEvent(ctx context.Context, id api.InstanceID, eventName string, opts ...RaiseEventOption) error {
	options := new(raiseEventOptions)
	for _, configure := range opts {
		if err := configure(options); err != nil {
			return err
		}
	}
	var raw []byte
	var err error
	switch {
	case options.hasRaw:
		raw = options.raw
	case options.hasPayload:
		raw, err = c.serder.SerializeBinary(options.payload)
		if err != nil {
			return fmt.Errorf("encode event payload: %w", err)
		}
	}

	e := &api.HistoryEvent{
		EventID:               -1,
		Timestamp:             time.Now().UTC(),
		ExternalEventReceived: &api.ExternalEventReceived{Name: eventName, Input: raw},
	}
	if err := c.history.AppendUnguarded(ctx, id, []*api.HistoryEvent{e}); err != nil {
		return err
	}
	return c.publishWake(ctx, id)
}

// Terminate forcibly finishes a running instance with the given reason. It
// is a race by design: an instance that completes on its own first keeps its
// own outcome. In-flight activities are not interrupted; their completions
// land in history unobserved.
func (c *Client) Terminate(ctx context.Context, id api.InstanceID, reason string) error {
	meta, err := c.status.get(ctx, id)
	if err != nil {
		return err
	}
	if meta.RuntimeStatus.IsTerminal() {
		return nil
	}
	e := &api.HistoryEvent{
		EventID:             -1,
		Timestamp:           time.Now().UTC(),
		ExecutionTerminated: &api.ExecutionTerminated{Reason: reason},
	}
	if err := c.history.AppendUnguarded(ctx, id, []*api.HistoryEvent{e}); err != nil {
		return err
	}
	return c.publishWake(ctx, id)
}

// GetStatus returns the instance's status record.
func (c *Client) GetStatus(ctx context.Context, id api.InstanceID) (*api.OrchestrationMetadata, error) {
	return c.status.get(ctx, id)
}

// WaitForCompletion blocks until the instance reaches a terminal status or
// ctx expires.
func (c *Client) WaitForCompletion(ctx context.Context, id api.InstanceID) (*api.OrchestrationMetadata, error) {
	meta, err := c.status.get(ctx, id)
	if err == nil && meta.RuntimeStatus.IsTerminal() {
		return meta, nil
	}
	if err != nil && !errors.Is(err, ErrInstanceNotFound) {
		return nil, err
	}
	return c.status.watch(ctx, id)
}

// GetOutput decodes a terminal instance's output into valuePtr. A Failed or
// Terminated instance yields a *TaskFailedError carrying the recorded
// failure.
func (c *Client) GetOutput(ctx context.Context, id api.InstanceID, valuePtr any) error {
	meta, err := c.status.get(ctx, id)
	if err != nil {
		return err
	}
	if !meta.RuntimeStatus.IsTerminal() {
		return fmt.Errorf("instance %q is still %s", id, meta.RuntimeStatus)
	}
	if meta.Failure != nil {
		return &TaskFailedError{Failure: meta.Failure}
	}
	if valuePtr == nil || len(meta.Output) == 0 {
		return nil
	}
	return c.serder.DeserializeBinary(meta.Output, valuePtr)
}

// PurgeInstance removes a terminal instance's history and status record.
func (c *Client) PurgeInstance(ctx context.Context, id api.InstanceID) error {
	meta, err := c.status.get(ctx, id)
	if err != nil {
		return err
	}
	if !meta.RuntimeStatus.IsTerminal() {
		return fmt.Errorf("cannot purge instance %q while %s", id, meta.RuntimeStatus)
	}
	js, err := c.conn.JS()
	if err != nil {
		return err
	}
	stream, err := js.Stream(ctx, api.HistoryStream)
	if err != nil {
		return fmt.Errorf("get history stream: %w", err)
	}
	subject := fmt.Sprintf(api.HistoryPublishSubjectPattern, id)
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(subject)); err != nil {
		return fmt.Errorf("purge history for %q: %w", id, err)
	}
	kv, err := js.KeyValue(ctx, api.StatusBucket)
	if err != nil {
		return fmt.Errorf("get status bucket: %w", err)
	}
	if err := kv.Delete(ctx, string(id)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete status for %q: %w", id, err)
	}
	return nil
}

func (c *Client) publishWake(ctx context.Context, id api.InstanceID) error {
	data, err := c.serder.SerializeBinary(&api.OrchestrationTask{InstanceID: id})
	if err != nil {
		return fmt.Errorf("encode orchestration task: %w", err)
	}
	subject := fmt.Sprintf(api.OrchestrationTaskPublishSubjectPattern, id)
	_, err = c.conn.PublishJS(ctx, subject, data)
	return err
}
