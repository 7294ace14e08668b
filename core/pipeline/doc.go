// Package pipeline composes ingestion, classification and suggestion into
// one-shot predictions and a cancellable monitoring loop. The Orchestrator
// owns the lifecycle of the served TrainedModel.
package pipeline
