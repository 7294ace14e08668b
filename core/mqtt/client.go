// Package mqtt declares how prediction results leave the process over MQTT.
package mqtt

import "github.com/kilianp07/railflow/core/model"

// Default topics.
const (
	DefaultResultsTopic  = "rail/congestion/results"
	DefaultHighRiskTopic = "rail/congestion/high_risk"
)

// ResultPublisher forwards prediction envelopes to subscribers outside the
// process.
type ResultPublisher interface {
	// PublishResult sends the envelope and one alert per high-risk train.
	PublishResult(env model.ResultEnvelope) error
}
