// Package routing assigns inbound leads to campaigns using persona and
// minimum-score rules. Rules are evaluated by priority, highest first, and
// ties fall back to creation order so a given rule set always resolves the
// same way.
package routing
