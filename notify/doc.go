// Package notify delivers one-time codes to SMS and email gateways.
//
// # Architecture boundaries
//
// The engine depends only on the Notifier interface. Webhook posts JSON to an
// HTTP gateway; Log writes deliveries to a zerolog logger for development.
//
// # What this package must NOT do
//
//   - Retain codes or contacts after a call returns.
//   - Put message bodies into returned errors.
package notify
