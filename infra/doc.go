// Package infra holds the adapters behind the core interfaces: the simulation
// backend client, model and result stores, the Redis cache, the MQTT
// publisher, metrics sinks and Sentry. Core packages never import infra.
package infra
