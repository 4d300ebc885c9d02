// Package messaging connects the service to the inbound message bus.
//
// Messages are consumed from a NATS subject through a queue subscription so
// that several service instances share the stream. Every message is handed to
// a Handler on its own goroutine, bounded by Config.Concurrency. A handler
// error is logged and never ends the subscription.
package messaging
