// Package health owns the mailbox and domain bounce windows and the
// escalation rules built on them.
//
// RecordSent and RecordBounce are the only counter mutators. Every write is a
// compare-and-swap on the entity version; the service retries lost races so
// that concurrent webhook deliveries never drop an increment. A mailbox pause
// is saved before the owning domain is aggregated, and a domain pause
// cascades to its active mailboxes in one batch statement.
package health
