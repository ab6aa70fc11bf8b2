// Package task runs batches of independent work items against a slow,
// fallible remote operation.
//
// An Orchestrator dispatches items through a bounded concurrency Gate and
// collects one Result per item in input order. Operations are made robust by
// composing two wrappers:
//
//   - RetryPolicy retries transient failures with randomized exponential backoff.
//   - TimeoutGuard bounds each call with a deadline and substitutes a fallback
//     result when the deadline passes, handing the still-running call to a
//     Supervisor so its gate slot is eventually released.
//
// A failure of one item never aborts the batch: retry exhaustion, operation
// errors and worker panics all become StatusFailed results for that item.
package task
