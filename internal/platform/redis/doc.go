// Package redis implements the cache backend and the publish/subscribe bus
// on a Redis server. Every operation runs under a short internal timeout so
// a backend outage degrades to "serve from the source of truth" instead of
// hanging request handlers.
package redis
