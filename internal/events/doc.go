// Package events bridges task mutations to live subscribers. The broadcaster
// packages a mutation into a typed event and publishes it, fire-and-forget,
// to an owner-scoped channel and a global channel on the publish/subscribe
// bus. Events are a liveness aid, not the source of truth: delivery is
// best-effort and the authoritative state is always re-derivable through the
// ordinary read path.
package events
