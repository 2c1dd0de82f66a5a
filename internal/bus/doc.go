// Package bus provides the in-memory event backbone connecting the
// pipeline's agents. Dispatch is synchronous and single-threaded per
// publish: exact-type subscribers run in registration order, then wildcard
// subscribers, and one failing handler never blocks the next. The bus keeps
// an append-only in-process event log for aggregation and test assertions;
// nothing survives a restart.
package bus
