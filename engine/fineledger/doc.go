// Package fineledger computes, charges and settles overdue fines.
//
// A loan has at most one fine. While the fine is UNPAID its amount follows the live
// calculation (rate per overdue day) and every change is mirrored into the member's
// balance in the same transaction, so the balance always equals the sum of the
// member's unpaid fines. A PAID fine is frozen.
package fineledger
