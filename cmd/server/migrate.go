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

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/coursely/coursely/internal/observability/logger"
	"github.com/coursely/coursely/internal/observability/tracing"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  `Creates the profiles, courses, lessons, enrollments and role_requests tables. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracer, err := tracing.New(cmd.Context(), tracing.Config{
			Enabled:        cfg.Observability.OTELEnabled,
			ServiceName:    cfg.Observability.ServiceName,
			ServiceVersion: cfg.Observability.ServiceVersion,
			SamplingRate:   1.0,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer tracer.Shutdown(context.Background())

		ctx, span := tracer.Start(cmd.Context(), "migrate")
		defer span.End()

		db, err := openDatabase(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		slog.InfoContext(ctx, "applying schema", logger.Component("migrate"))
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.InfoContext(ctx, "migration successful", logger.Component("migrate"))
		return nil
	},
}
