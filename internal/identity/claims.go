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
	"github.com/golang-jwt/jwt/v5"
)

// AppMetadata is the server-controlled claim block of an access token.
type AppMetadata struct {
	Role      string   `json:"role,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// Claims is the access token issued by the identity platform.
type Claims struct {
	jwt.RegisteredClaims

	Email        string         `json:"email,omitempty"`
	AppMetadata  AppMetadata    `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
}

// Principal builds the request principal from verified claims.
func (c Claims) Principal() *Principal {
	p := &Principal{
		ID:         c.Subject,
		Email:      c.Email,
		SecureRole: c.AppMetadata.Role,
		Metadata:   c.UserMetadata,
		SessionID:  c.SessionID,
	}
	if p.SessionID == "" {
		p.SessionID = c.ID
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}

	seen := make(map[string]bool)
	for _, provider := range append([]string{c.AppMetadata.Provider}, c.AppMetadata.Providers...) {
		if provider == "" || seen[provider] {
			continue
		}
		seen[provider] = true
		p.Providers = append(p.Providers, provider)
	}
	return p
}
