// Package caseflow is the business boundary for the ticket triage pipeline.
// It defines the Workflow (ordered stages over one case state, with a single
// human-approval suspension point), the approval gate, the action executor,
// the Service (lifecycle, IDs, metrics), the Store interface (checkpoint
// persistence), and the domain models.
package caseflow
