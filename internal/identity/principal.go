// Copyright 2026 The Coursely Authors
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

package identity

import (
	"strings"
	"time"
)

// Trust boundaries on a Principal:
// 1. SecureRole is written only by the identity platform's server side.
// 2. Metadata is writable by the end user's client.
//
// Anti-Patterns (FORBIDDEN):
// - Reading a role, permission or flag out of Metadata for any allow/deny decision
// - Copying Metadata values into SecureRole

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID        string
	Email     string
	Providers []string

	// SecureRole is the server-issued role claim. Empty when the platform did not set one.
	SecureRole string

	// Metadata is client-writable. Personalization only.
	Metadata map[string]any

	SessionID string
	ExpiresAt time.Time
}

// DisplayName returns a human-readable name for personalization.
func (p *Principal) DisplayName() string {
	for _, key := range []string{"full_name", "name", "display_name"} {
		if v, ok := p.Metadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if local, _, ok := strings.Cut(p.Email, "@"); ok && local != "" {
		return local
	}
	return p.Email
}
