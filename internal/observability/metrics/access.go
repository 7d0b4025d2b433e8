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

package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names exported by the access layer.
const (
	RoleResolutionsTotal    = "coursely.authz.role_resolutions"
	RoleLookupFailuresTotal = "coursely.authz.role_lookup_failures"
	RoleLookupDuration      = "coursely.authz.role_lookup.duration"
	GuardDecisionsTotal     = "coursely.guard.decisions"
	MediaURLsIssuedTotal    = "coursely.media.signed_urls"
	MediaDeniedTotal        = "coursely.media.denied"
)

// AccessMetrics records role resolution, route guard and media signing outcomes.
// A nil *AccessMetrics is valid and records nothing.
type AccessMetrics struct {
	resolutions    metric.Int64Counter
	lookupFailures metric.Int64Counter
	lookupDuration metric.Float64Histogram
	decisions      metric.Int64Counter
	mediaIssued    metric.Int64Counter
	mediaDenied    metric.Int64Counter
}

// NewAccessMetrics registers the access instruments on m.
func NewAccessMetrics(m *Meter) (*AccessMetrics, error) {
	var (
		am  AccessMetrics
		err error
	)
	if am.resolutions, err = m.CreateCounter(RoleResolutionsTotal, "Role resolutions by satisfying source"); err != nil {
		return nil, err
	}
	if am.lookupFailures, err = m.CreateCounter(RoleLookupFailuresTotal, "Profile role lookups that failed or timed out"); err != nil {
		return nil, err
	}
	if am.lookupDuration, err = m.CreateHistogram(RoleLookupDuration, "Profile role lookup latency", "ms", LookupBucketsMs); err != nil {
		return nil, err
	}
	if am.decisions, err = m.CreateCounter(GuardDecisionsTotal, "Route guard decisions by terminal state"); err != nil {
		return nil, err
	}
	if am.mediaIssued, err = m.CreateCounter(MediaURLsIssuedTotal, "Signed media URLs issued"); err != nil {
		return nil, err
	}
	if am.mediaDenied, err = m.CreateCounter(MediaDeniedTotal, "Media URL requests refused by the access check"); err != nil {
		return nil, err
	}
	return &am, nil
}

func (a *AccessMetrics) RoleResolved(ctx context.Context, source string) {
	if a == nil {
		return
	}
	a.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (a *AccessMetrics) RoleLookupFailed(ctx context.Context, reason string) {
	if a == nil {
		return
	}
	a.lookupFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (a *AccessMetrics) RoleLookupObserved(ctx context.Context, d time.Duration) {
	if a == nil {
		return
	}
	a.lookupDuration.Record(ctx, float64(d.Microseconds())/1000)
}

func (a *AccessMetrics) GuardDecision(ctx context.Context, state, rule string) {
	if a == nil {
		return
	}
	a.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state),
		attribute.String("rule", rule),
	))
}

func (a *AccessMetrics) MediaURLIssued(ctx context.Context) {
	if a == nil {
		return
	}
	a.mediaIssued.Add(ctx, 1)
}

func (a *AccessMetrics) MediaDenied(ctx context.Context) {
	if a == nil {
		return
	}
	a.mediaDenied.Add(ctx, 1)
}
