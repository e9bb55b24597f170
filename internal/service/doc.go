// Package service orchestrates the task write pipeline and the cached read
// path. Every mutation passes the hierarchy guard, persists to the source of
// truth, evicts the affected cache keys, and publishes a change event — in
// that order. Cache and bus failures after the persist step are contained;
// only domain errors propagate to callers.
package service
