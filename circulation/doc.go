// Package circulation holds the contracts of the library circulation engine.
//
// It defines the persisted entities (book copies, reservations, loans, fines and the
// external member/catalog records the engine reads), the error taxonomy every public
// operation reports through (NotFound, Business, Conflict), the unit-of-work contract
// that storage engines implement, and dependency-free observability interfaces.
//
// Storage engines live in the subpackages postgresengine and memoryengine. The business
// rules live in the engine/... packages, which only talk to storage through Store and Tx.
package circulation
