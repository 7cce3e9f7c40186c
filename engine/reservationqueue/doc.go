// Package reservationqueue is the per-book FIFO waitlist.
//
// A reservation starts PENDING, becomes READY_FOR_PICKUP when a returned copy is held
// for it, and ends FULFILLED (borrowed), EXPIRED (not collected in time) or deleted
// (cancelled). Entries of one book are served by creation time, with the insertion
// position as tiebreaker. The queue never touches copies: the loan ledger flips copy
// status around every queue transition.
package reservationqueue
