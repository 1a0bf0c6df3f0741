// Package node assembles a Kestrel ledger node: the subsystem actors, the
// mailboxes that connect them, the ingestion and telemetry servers, and the
// dependency-ordered lifecycle that starts and stops it all.
package node
