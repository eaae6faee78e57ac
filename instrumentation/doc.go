// Package instrumentation provides OpenTelemetry metrics and tracing for
// the form security service.
//
// When disabled (the default for embedding applications that do not
// export telemetry), all instruments are backed by no-op providers with
// zero overhead, so callers can record unconditionally.
package instrumentation
