// Package triage provides the business boundary for claim triage. It
// defines the Service (claim lifecycle, per-claim serialization, async
// dispatch), the Engine (the pure rule cascade plus its two event
// publishes), settlement estimation, and domain models.
package triage
