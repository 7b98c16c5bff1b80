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

package client

import (
	"github.com/mnvu/durango/sdk/internal"
)

var (
	// ErrInstanceNotFound is returned for queries against an unknown id.
	ErrInstanceNotFound = internal.ErrInstanceNotFound

	// ErrInstanceAlreadyExists is returned when scheduling with an id that
	// is already in use.
	ErrInstanceAlreadyExists = internal.ErrInstanceAlreadyExists
)
