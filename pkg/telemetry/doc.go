// Package telemetry provides the observability plumbing for frycooker runs.
//
// # Structured Logging
//
// Logger wraps zerolog. The CLI builds one from LOG_LEVEL, LOG_FORMAT and
// the --verbose flag and installs it as the global zerolog logger:
//
//	logger, err := telemetry.NewLogger(telemetry.LoggingFromEnv(verbose))
//	log.Logger = logger.Zerolog()
//
// # Metrics
//
// RunMetrics is an engine.Observer backed by a private Prometheus registry.
// frycooker is a short-lived process, so metrics are not served over HTTP;
// they are written once per run in the text exposition format for the
// node_exporter textfile collector:
//
//	metrics := telemetry.NewRunMetrics()
//	runner.WithObserver(metrics)
//	...
//	metrics.RecordRun(run)
//	err := metrics.WriteTextfile("/var/lib/node_exporter/frycook.prom")
//
// Exported series: frycook_runs_total, frycook_run_duration_seconds,
// frycook_hosts_total, frycook_host_duration_seconds,
// frycook_work_items_total, frycook_work_item_duration_seconds and
// frycook_files_total.
//
// # Distributed Tracing
//
// Tracer wraps an OpenTelemetry provider and satisfies engine.Tracer. The
// runner opens one span per run, host and work item. Supported exporters are
// none, stdout and otlp (gRPC).
//
//	tracer, err := telemetry.NewTracer(settings.Tracing)
//	defer tracer.Shutdown(context.Background())
package telemetry
