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
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mnvu/durango/api"
)

// RetryPolicy drives the executor-side retry loop for activities and
// sub-orchestrations. Retries are recorded decisions: each attempt schedules
// a durable backoff timer and a fresh invocation, so the whole loop replays
// deterministically from the History Log.
type RetryPolicy struct {
	// InitialInterval is the backoff before the first retry.
	// Defaults to 1s when zero.
	InitialInterval time.Duration

	// BackoffCoefficient multiplies the previous interval for each further
	// retry. Must be >= 1; defaults to 2.
	BackoffCoefficient float64

	// MaximumInterval caps the backoff. Defaults to 100x InitialInterval.
	MaximumInterval time.Duration

	// MaximumAttempts bounds the total number of attempts, the first
	// included. Zero means a single attempt (no retries).
	MaximumAttempts int32

	// NonRetryableErrorTypes lists failure tags that stop retrying
	// immediately, matched against Failure.ErrorType.
	NonRetryableErrorTypes []string
}

func (r *RetryPolicy) normalize() RetryPolicy {
	p := *r
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}
	if p.BackoffCoefficient < 1 {
		p.BackoffCoefficient = 2.0
	}
	if p.MaximumInterval <= 0 {
		p.MaximumInterval = 100 * p.InitialInterval
	}
	if p.MaximumAttempts <= 0 {
		p.MaximumAttempts = 1
	}
	return p
}

// nextDelay computes the backoff before attempt+1 (attempt is zero-based).
func (r *RetryPolicy) nextDelay(attempt int) time.Duration {
	d := time.Duration(float64(r.InitialInterval) * math.Pow(r.BackoffCoefficient, float64(attempt)))
	if d > r.MaximumInterval {
		return r.MaximumInterval
	}
	return d
}

func (r *RetryPolicy) retryable(f *api.Failure) bool {
	if f == nil {
		return false
	}
	if f.ErrorType == nonRetryableErrorType {
		return false
	}
	return !slices.Contains(r.NonRetryableErrorTypes, f.ErrorType)
}

type callActivityOptions struct {
	input       any
	hasInput    bool
	rawInput    []byte
	hasRaw      bool
	retryPolicy *RetryPolicy
}

// CallActivityOption configures one CallActivity invocation.
type CallActivityOption func(*callActivityOptions) error

// WithActivityInput serializes the given value as the activity input. This is
// the single encode point for activity payloads; the executor and transport
// only ever see the resulting bytes.
func WithActivityInput(input any) CallActivityOption {
	return func(o *callActivityOptions) error {
		o.input = input
		o.hasInput = true
		return nil
	}
}

// WithRawActivityInput passes pre-encoded input bytes through unchanged.
func WithRawActivityInput(raw []byte) CallActivityOption {
	return func(o *callActivityOptions) error {
		o.rawInput = raw
		o.hasRaw = true
		return nil
	}
}

// WithActivityRetryPolicy retries the activity per the given policy before
// its failure is surfaced to the orchestrator.
func WithActivityRetryPolicy(policy *RetryPolicy) CallActivityOption {
	return func(o *callActivityOptions) error {
		if policy == nil {
			return nil
		}
		if policy.BackoffCoefficient != 0 && policy.BackoffCoefficient < 1 {
			return fmt.Errorf("retry policy backoff coefficient must be >= 1, got %v", policy.BackoffCoefficient)
		}
		o.retryPolicy = policy
		return nil
	}
}

type callSubOrchestratorOptions struct {
	input      any
	hasInput   bool
	rawInput   []byte
	hasRaw     bool
	instanceID api.InstanceID
}

// CallSubOrchestratorOption configures one CallSubOrchestrator invocation.
type CallSubOrchestratorOption func(*callSubOrchestratorOptions) error

// WithSubOrchestratorInput serializes the given value as the child input.
func WithSubOrchestratorInput(input any) CallSubOrchestratorOption {
	return func(o *callSubOrchestratorOptions) error {
		o.input = input
		o.hasInput = true
		return nil
	}
}

// WithSubOrchestratorRawInput passes pre-encoded child input bytes through.
func WithSubOrchestratorRawInput(raw []byte) CallSubOrchestratorOption {
	return func(o *callSubOrchestratorOptions) error {
		o.rawInput = raw
		o.hasRaw = true
		return nil
	}
}

// WithSubOrchestratorInstanceID pins the child instance id. Without it the
// executor derives a deterministic id from the parent id and the scheduling
// sequence number, so replays always address the same child.
func WithSubOrchestratorInstanceID(id api.InstanceID) CallSubOrchestratorOption {
	return func(o *callSubOrchestratorOptions) error {
		o.instanceID = id
		return nil
	}
}
