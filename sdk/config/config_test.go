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

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("URL = %q, want nats://localhost:4222", cfg.NATS.URL)
	}
	if cfg.NATS.MaxReconnects != DefaultMaxReconnects {
		t.Errorf("MaxReconnects = %d, want %d", cfg.NATS.MaxReconnects, DefaultMaxReconnects)
	}
	if cfg.Timeouts.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", cfg.Timeouts.RequestTimeout, DefaultRequestTimeout)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NATS_HOST", "nats.internal")
	t.Setenv("NATS_PORT", "4333")
	t.Setenv("NATS_RECONNECT_WAIT", "5s")
	t.Setenv("TIMEOUTS_REQUEST_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NATS.URL != "nats://nats.internal:4333" {
		t.Errorf("URL = %q, want nats://nats.internal:4333", cfg.NATS.URL)
	}
	if cfg.NATS.ReconnectWait != 5*time.Second {
		t.Errorf("ReconnectWait = %v, want 5s", cfg.NATS.ReconnectWait)
	}
	if cfg.Timeouts.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Timeouts.RequestTimeout)
	}
}

func TestExplicitURLWins(t *testing.T) {
	t.Setenv("NATS_URL", "nats://cluster.example.com:4222")
	t.Setenv("NATS_HOST", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NATS.URL != "nats://cluster.example.com:4222" {
		t.Errorf("URL = %q, explicit URL must win over host/port", cfg.NATS.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"no url and no host", func(c *Config) {
			c.NATS.URL = ""
			c.NATS.Host = ""
		}, true},
		{"host and port without url", func(c *Config) {
			c.NATS.URL = ""
		}, false},
		{"non-positive request timeout", func(c *Config) {
			c.Timeouts.RequestTimeout = 0
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNATZMapping(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	nc := cfg.NATZ()
	if nc.URL != cfg.NATS.URL {
		t.Errorf("URL = %q, want %q", nc.URL, cfg.NATS.URL)
	}
	if nc.Name != cfg.NATS.ClientName {
		t.Errorf("Name = %q, want %q", nc.Name, cfg.NATS.ClientName)
	}
	if nc.MaxReconnects != cfg.NATS.MaxReconnects {
		t.Errorf("MaxReconnects = %d, want %d", nc.MaxReconnects, cfg.NATS.MaxReconnects)
	}
}
