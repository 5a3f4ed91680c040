// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Every handler should use these helpers instead of writing raw
// http.ResponseWriter calls so error envelopes stay consistent across the
// ingestion, webhook and admin endpoints.
package httputil
