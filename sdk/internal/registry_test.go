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
	"errors"
	"testing"
)

func sampleOrchestrator(ctx *OrchestrationContext) (any, error) { return nil, nil }

func sampleActivity(ctx ActivityContext) (any, error) { return nil, nil }

func TestTaskNameDerivation(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string passes through", "BillingFlow", "BillingFlow"},
		{"top-level func", sampleOrchestrator, "sampleOrchestrator"},
		{"activity func", sampleActivity, "sampleActivity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := taskName(tt.in)
			if err != nil {
				t.Fatalf("taskName: %v", err)
			}
			if got != tt.want {
				t.Fatalf("taskName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskNameRejectsNonFunc(t *testing.T) {
	if _, err := taskName(42); err == nil {
		t.Fatal("expected error for non-func value")
	}
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddOrchestrator(sampleOrchestrator); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	err := reg.AddOrchestrator(sampleOrchestrator)
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}

	if err := reg.AddActivity(sampleActivity); err != nil {
		t.Fatalf("first activity registration: %v", err)
	}
	err = reg.AddActivityN("sampleActivity", sampleActivity)
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}

	// Orchestrator and activity namespaces are independent.
	if err := reg.AddActivityN("sampleOrchestrator", sampleActivity); err != nil {
		t.Fatalf("cross-namespace registration: %v", err)
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddOrchestratorN("", sampleOrchestrator); err == nil {
		t.Fatal("expected error for empty orchestrator name")
	}
	if err := reg.AddActivityN("", sampleActivity); err == nil {
		t.Fatal("expected error for empty activity name")
	}
}

func TestRegistryLookupErrors(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.orchestrator("missing"); !errors.Is(err, ErrOrchestratorNotRegistered) {
		t.Fatalf("expected ErrOrchestratorNotRegistered, got %v", err)
	}
	if _, err := reg.activity("missing"); !errors.Is(err, ErrActivityNotRegistered) {
		t.Fatalf("expected ErrActivityNotRegistered, got %v", err)
	}
}
