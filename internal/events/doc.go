// Package events publishes domain events to Kafka.
//
// A completed query execution emits query.executed and a completed paper
// retrieval emits paper.retrieved. Messages are keyed by the entity id so
// that all events for one query or paper land on the same partition. When
// Kafka is disabled the NoopPublisher is used instead.
//
// The Listener reads the same topic back and is used by the operator CLI to
// tail events.
package events
