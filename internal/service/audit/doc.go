// Package audit records every protection-engine decision as an append-only
// entry. Writes are best-effort: a failing or slow sink never blocks or
// reverts the decision being described.
//
// Sinks live in repository/postgres (audit_logs), repository/dynamo (mirror)
// and repository/memory.
package audit
