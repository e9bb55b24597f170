// Package gateway implements the persistent-connection fan-out server. It
// accepts websocket connections, authenticates them against the token
// service, manages per-connection channel subscriptions, and forwards bus
// payloads to subscribed connections.
//
// Delivery is best-effort: there is no acknowledgment or replay, and a
// connection that is offline when an event is published never sees it. The
// authoritative state is always re-derivable through the ordinary read path.
package gateway
