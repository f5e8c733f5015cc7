package domain

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("rads.domain")
	meter  = otel.Meter("rads.domain")
)

var (
	filesScanned   metric.Int64Counter
	parseFailures  metric.Int64Counter
	cacheHits      metric.Int64Counter
	scanLatency    metric.Float64Histogram
	packagesByKind metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		filesScanned, err = meter.Int64Counter(
			"rads_files_scanned_total",
			metric.WithDescription("Number of Rust source files scanned"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseFailures, err = meter.Int64Counter(
			"rads_parse_failures_total",
			metric.WithDescription("Number of Rust source files that failed to parse"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheHits, err = meter.Int64Counter(
			"rads_scan_cache_hits_total",
			metric.WithDescription("Number of scans served from the scan cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		scanLatency, err = meter.Float64Histogram(
			"rads_scan_duration_seconds",
			metric.WithDescription("Duration of single file scans"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		packagesByKind, err = meter.Int64Counter(
			"rads_packages_classified_total",
			metric.WithDescription("Number of packages per classification"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})

	return metricsErr
}

func recordScan(ctx context.Context, duration time.Duration, failed bool) {
	if err := initMetrics(); err != nil {
		return
	}

	filesScanned.Add(ctx, 1)
	scanLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("failed", failed)))

	if failed {
		parseFailures.Add(ctx, 1)
	}
}

func recordCacheHit(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}

	cacheHits.Add(ctx, 1)
}

func recordClassification(ctx context.Context, classification string) {
	if err := initMetrics(); err != nil {
		return
	}

	packagesByKind.Add(ctx, 1, metric.WithAttributes(attribute.String("classification", classification)))
}
