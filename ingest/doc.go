// Package ingest implements the node's submission boundary. A submission is
// decoded into an envelope, applied against ingestion state, and only when
// both succeed are the original bytes forwarded unmodified into the actor
// graph. The caller sees exactly two outcomes, accepted or rejected;
// diagnosis happens through logs and metrics, never through the response.
package ingest
