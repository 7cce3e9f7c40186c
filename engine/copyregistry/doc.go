// Package copyregistry owns the physical availability of book copies.
//
// The registry is deliberately dumb: it persists copy status and enforces the
// compare-and-set discipline, while every decision about who may take a copy
// is made by the loan ledger. Adding and removing copies are the only rules it knows.
package copyregistry
