// Package lead ingests prospects, routes them to a campaign, and performs
// the held-to-active transition the processor loop applies after the gate.
package lead
