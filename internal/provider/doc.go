// ABOUTME: Package provider defines the vendor adapter contract and RawDelta union
// ABOUTME: Adapters translate the canonical log to vendor requests and streams back

// Package provider isolates vendor wire protocols from the reconciliation
// logic. An Adapter does exactly two jobs: rebuild a vendor request from
// the canonical event log, and expose the vendor's native stream as a
// sequence of RawDelta values with no semantic interpretation. Assembling
// deltas into finalized segments is the builder's job, so adding a third
// vendor means adding one adapter, not touching the builder.
package provider
