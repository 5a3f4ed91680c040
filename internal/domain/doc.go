// Package domain defines the core types for the sendguard deliverability
// protection engine.
//
// Types in this package are value objects with no database dependencies and
// no HTTP concerns. They are the shared language between handlers, services,
// workers and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Pure methods on the type are allowed (status checks, rule matching)
//   - Constants and enums belong here
package domain
