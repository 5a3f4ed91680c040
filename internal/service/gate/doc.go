// Package gate is the admission check a lead must pass before it is
// activated and pushed to the sending platform. It only reads, and any
// failure denies.
package gate
