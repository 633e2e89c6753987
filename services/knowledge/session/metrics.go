// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("codegraph.session")

var (
	analysisLatency  metric.Float64Histogram
	analysisFiles    metric.Int64Histogram
	analysisEntities metric.Int64Histogram
	analysisErrors   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"codegraph_analysis_duration_seconds",
			metric.WithDescription("Duration of full analysis runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisFiles, err = meter.Int64Histogram(
			"codegraph_analysis_files",
			metric.WithDescription("Files parsed per analysis run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisEntities, err = meter.Int64Histogram(
			"codegraph_analysis_entities",
			metric.WithDescription("Entities written per analysis run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisErrors, err = meter.Int64Counter(
			"codegraph_analysis_file_errors_total",
			metric.WithDescription("Files that failed to parse during analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordAnalysis records metrics for one run. Metric initialization
// failures are swallowed: observability must never fail an analysis.
func recordAnalysis(ctx context.Context, elapsed time.Duration, files, entities, fileErrors int) {
	if err := initMetrics(); err != nil {
		return
	}
	analysisLatency.Record(ctx, elapsed.Seconds())
	analysisFiles.Record(ctx, int64(files))
	analysisEntities.Record(ctx, int64(entities))
	if fileErrors > 0 {
		analysisErrors.Add(ctx, int64(fileErrors))
	}
}
