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

package serde_test

import (
	"testing"
	"time"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
)

type reservation struct {
	OrderID  string  `json:"order_id" msgpack:"order_id"`
	Quantity int     `json:"quantity" msgpack:"quantity"`
	Price    float64 `json:"price"    msgpack:"price"`
}

// Convert must map decoded values onto concrete types regardless of which
// serializer produced the bytes.
func TestConvertIsSerializerAgnostic(t *testing.T) {
	serdes := []struct {
		name string
		s    serde.BinarySerde
	}{
		{"msgpack", &serde.MsgpackSerde{}},
		{"json", &serde.JsonSerde{}},
	}

	for _, tc := range serdes {
		t.Run(tc.name, func(t *testing.T) {
			in := reservation{OrderID: "ord-17", Quantity: 3, Price: 19.99}

			raw, err := tc.s.SerializeBinary(in)
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}

			// Simulate the worker edge: decode into a loose value first,
			// then convert onto the handler's declared type.
			var loose any
			if err := tc.s.DeserializeBinary(raw, &loose); err != nil {
				t.Fatalf("deserialize: %v", err)
			}

			var out reservation
			if err := serde.Convert(tc.s, loose, &out); err != nil {
				t.Fatalf("convert: %v", err)
			}
			if out != in {
				t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
			}
		})
	}
}

// History events must survive encoding with their variant and event ID
// intact; the log is the sole input to future replays.
func TestHistoryEventEncoding(t *testing.T) {
	s := &serde.MsgpackSerde{}
	fireAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := &api.HistoryEvent{
		EventID:      4,
		Timestamp:    fireAt,
		TimerCreated: &api.TimerCreated{FireAt: fireAt, Name: "approval-timeout"},
	}

	raw, err := s.SerializeBinary(in)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var out api.HistoryEvent
	if err := s.DeserializeBinary(raw, &out); err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if out.Kind() != "timer/created" {
		t.Fatalf("variant lost: got %q", out.Kind())
	}
	if out.EventID != 4 {
		t.Fatalf("event id lost: got %d", out.EventID)
	}
	if !out.TimerCreated.FireAt.Equal(fireAt) {
		t.Fatalf("fire-at drift: got %v", out.TimerCreated.FireAt)
	}
}
