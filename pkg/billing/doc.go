// Package billing manages the subscription lifecycle. The payment processor
// owns the money; this package owns the record of it. Users initiate
// checkouts through Service, the processor confirms or denies asynchronously
// through Processor, and the user's current plan and status are mirrored
// onto the user record for the entitlement layer to read.
//
// Webhook delivery is at-least-once and unordered. Every transition is
// written to be replay-safe: deliveries are deduplicated by provider event
// id against the record's append-only audit log, and state changes guard on
// the current status rather than assuming events arrive in sequence.
package billing
