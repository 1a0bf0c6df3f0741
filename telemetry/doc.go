// Package telemetry provides the process-wide observability surface for a
// Kestrel node: structured logging and a metric registry keyed by the
// hierarchical label path of the runtime context that registered each metric.
package telemetry
