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
	"io"
	"log/slog"
	"reflect"
	"runtime"
	"strings"
)

// TaskName resolves the history name for an activity or orchestrator
// reference: a string is used verbatim, a func value maps to its bare
// function name with package path and closure suffixes stripped.
func TaskName(v any) (string, error) {
	return taskName(v)
}

func taskName(v any) (string, error) {
	if name, ok := v.(string); ok {
		return name, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func {
		return "", fmt.Errorf("expected a name or a function, got %T", v)
	}
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "", fmt.Errorf("cannot resolve function name for %T", v)
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	return name, nil
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
