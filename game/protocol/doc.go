// Package protocol defines the JSON wire messages exchanged between game
// clients and the arena relay.
//
// Every frame is a single JSON object carrying a "type" discriminator.
// Inbound frames are decoded into an Envelope, which keeps the raw fields so
// relayed messages can be forwarded without knowing their payload. Outbound
// frames are typed structs built by the New* constructors.
//
// Registries never hold connections directly. They address clients by id
// through an Outbox, which the relay server implements on top of its
// connection registry.
package protocol
