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
	"reflect"
	"testing"
	"time"

	"github.com/mnvu/durango/api"
)

func TestRetryPolicyNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   RetryPolicy
		want RetryPolicy
	}{
		{
			name: "zero value gets defaults",
			in:   RetryPolicy{},
			want: RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    100 * time.Second,
				MaximumAttempts:    1,
			},
		},
		{
			name: "maximum interval follows initial interval",
			in:   RetryPolicy{InitialInterval: 50 * time.Millisecond, MaximumAttempts: 4},
			want: RetryPolicy{
				InitialInterval:    50 * time.Millisecond,
				BackoffCoefficient: 2.0,
				MaximumInterval:    5 * time.Second,
				MaximumAttempts:    4,
			},
		},
		{
			name: "explicit values pass through",
			in: RetryPolicy{
				InitialInterval:    time.Minute,
				BackoffCoefficient: 1.5,
				MaximumInterval:    time.Hour,
				MaximumAttempts:    10,
			},
			want: RetryPolicy{
				InitialInterval:    time.Minute,
				BackoffCoefficient: 1.5,
				MaximumInterval:    time.Hour,
				MaximumAttempts:    10,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalize()
			// RetryPolicy carries a slice field, so compare deeply.
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := (&RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    10,
	}).normalize()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{8, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := policy.nextDelay(tt.attempt); got != tt.want {
			t.Errorf("nextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyRetryable(t *testing.T) {
	policy := RetryPolicy{NonRetryableErrorTypes: []string{"ValidationError"}}

	tests := []struct {
		name    string
		failure *api.Failure
		want    bool
	}{
		{"nil failure", nil, false},
		{"plain business failure", &api.Failure{Kind: api.FailureBusiness, ErrorType: "TemporaryError"}, true},
		{"listed error type", &api.Failure{ErrorType: "ValidationError"}, false},
		{"tagged non-retryable", &api.Failure{ErrorType: nonRetryableErrorType}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.retryable(tt.failure); got != tt.want {
				t.Fatalf("retryable(%+v) = %v, want %v", tt.failure, got, tt.want)
			}
		})
	}
}

func TestWithActivityRetryPolicyRejectsBadBackoff(t *testing.T) {
	var opts callActivityOptions
	if err := WithActivityRetryPolicy(&RetryPolicy{BackoffCoefficient: 0.5})(&opts); err == nil {
		t.Fatal("expected error for backoff coefficient < 1")
	}
	if err := WithActivityRetryPolicy(nil)(&opts); err != nil {
		t.Fatalf("nil policy: %v", err)
	}
	if opts.retryPolicy != nil {
		t.Fatal("nil policy must leave options unset")
	}
}
