// Package notifier delivers rendered course messages to subscribers.
//
// Messages are packed into chunks by compose.Chunk and sent in order through a
// transport.Sender. Sends share one rate limiter, and consecutive chunks are
// spaced by a configurable delay. Delivery errors are logged and published on
// the event bus; they are never returned to the broadcast cycle.
package notifier
