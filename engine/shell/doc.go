// Package shell holds the plumbing every circulation command and query handler shares:
// optimistic-concurrency retry, unit-of-work execution, handler results and the
// observability helpers the observable wrappers build on.
//
// The engine components (copy registry, reservation queue, loan ledger, fine ledger)
// contain the business decisions; this package is the imperative shell around them.
package shell
