package copyregistry

import (
	"github.com/AntonStoeckl/library-circulation/circulation"
)

// DecideRemoval says whether a copy may leave the collection.
//
// Business Rules:
//
//	GIVEN: a book copy
//	WHEN: it is removed from circulation
//	THEN: it is deleted
//	ERROR: "cannot remove a copy that is loaned or held for pickup" if it is LOANED or RESERVED
func DecideRemoval(bookCopy circulation.BookCopy) error {
	if bookCopy.Status != circulation.CopyAvailable {
		return circulation.ErrCopyInCirculation
	}

	return nil
}
