// Package loanledger orchestrates circulation: borrowing, returning and the reservation API.
//
// Every command runs as one transaction over the copy registry, the reservation queue and
// the fine ledger, and is retried as a whole when a compare-and-set loses a race. Whenever a
// copy comes back, or a held copy is released, it is handed to the head of its book's queue
// (copy RESERVED, reservation READY_FOR_PICKUP) or made AVAILABLE. Members are told about
// a waiting copy only after the transaction committed, and a failing notifier never undoes
// the hand-off.
//
// Handlers:
//
//	BorrowHandler                   – lends a copy chosen by id, barcode or book
//	ReturnHandler                   – closes a loan, hands the copy on, charges any fine
//	PlaceReservationHandler         – joins a book's queue
//	CancelReservationHandler        – leaves the queue, releasing a held copy
//	ExpireReadyReservationsHandler  – the hold sweep for uncollected copies
//	QueuePositionHandler            – 1-based rank among PENDING reservations
//	ListLoansHandler                – all loans or one member's
package loanledger
