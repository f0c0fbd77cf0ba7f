// Package metrics defines the Prometheus metrics exported by the asset
// library service and a collector that periodically refreshes library
// gauges from aggregate statistics.
package metrics
