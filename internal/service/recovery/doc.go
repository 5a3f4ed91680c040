// Package recovery graduates paused mailboxes and domains back to full
// capacity through paused, quarantine, restricted_send and warm_recovery.
//
// Policy holds the tunable thresholds and the resilience weights. Machine is
// a pure function over a RecoveryState; Service applies it to every entity
// that is not healthy, one step per tick.
package recovery
