// Package claim defines the claim aggregate at the center of the FNOL
// pipeline and the Store interface its persistence hangs off. The triage
// engine derives Decision, MissingInfo, Status and Estimate; intake and the
// document-upload path only ever mutate the evidence fields.
package claim
