// Package metrics defines the events recorded by the prediction pipeline and
// the sink interfaces that persist them. Sinks are built from configuration
// through a factory registry; implementations live in infra/metrics.
package metrics
