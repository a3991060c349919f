// Package store keeps the latest statsd sample per metric name in memory,
// expiring metrics that have not been seen within a TTL.
package store
