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

package logger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/coursely/coursely/internal/observability/tracing"
)

// ProviderConfig configures the OpenTelemetry log pipeline
type ProviderConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Exporter replaces the OTLP HTTP exporter. Used by tests.
	Exporter sdklog.Exporter
}

// NewProvider builds the log provider behind the slog bridge and installs it
// globally. It returns nil when disabled; a nil provider keeps the bridge out
// of the handler chain.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*sdklog.LoggerProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	exporter := cfg.Exporter
	if exporter == nil {
		exp, err := otlploghttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		exporter = exp
	}

	res, err := tracing.NewResource(ctx, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(provider)
	return provider, nil
}
