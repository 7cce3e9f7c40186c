// Package memoryengine provides an in-process implementation of the circulation.Store contract.
//
// Units of work are serialized behind one mutex. Each one runs against a private copy of the
// state, which replaces the shared state only when the body returns nil, so a failing body leaves
// nothing behind. The uniqueness rules the Postgres schema enforces with indexes are checked on
// every write and surface as circulation.ErrConcurrencyConflict, exactly like the database does.
package memoryengine

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

const (
	logMsgTxCommitted  = "memory store: transaction committed"
	logMsgTxRolledBack = "memory store: transaction rolled back"
	logAttrDurationMS  = "duration_ms"
	logAttrError       = "error"
)

// Store is the in-memory circulation.Store.
type Store struct {
	mu     sync.Mutex
	state  *state
	logger circulation.Logger
}

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithLogger sets the logger for the Store. Commits and rollbacks are logged at debug level.
func WithLogger(logger circulation.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewStore creates an empty Store.
func NewStore(options ...Option) (*Store, error) {
	s := &Store{state: newState()}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// WithinTx runs fn against a private copy of the state and publishes the copy if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn circulation.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	working := s.state.clone()

	if err := fn(ctx, &memTx{state: working}); err != nil {
		if s.logger != nil {
			s.logger.Debug(logMsgTxRolledBack, logAttrError, err.Error(), logAttrDurationMS, time.Since(start).Milliseconds())
		}

		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = working

	if s.logger != nil {
		s.logger.Debug(logMsgTxCommitted, logAttrDurationMS, time.Since(start).Milliseconds())
	}

	return nil
}

type state struct {
	copies          map[uuid.UUID]circulation.BookCopy
	reservations    map[uuid.UUID]circulation.Reservation
	loans           map[uuid.UUID]circulation.Loan
	fines           map[uuid.UUID]circulation.Fine
	members         map[uuid.UUID]circulation.Member
	membershipTypes map[uuid.UUID]circulation.MembershipType
	books           map[uuid.UUID]circulation.Book
	nextPosition    int64
}

func newState() *state {
	return &state{
		copies:          make(map[uuid.UUID]circulation.BookCopy),
		reservations:    make(map[uuid.UUID]circulation.Reservation),
		loans:           make(map[uuid.UUID]circulation.Loan),
		fines:           make(map[uuid.UUID]circulation.Fine),
		members:         make(map[uuid.UUID]circulation.Member),
		membershipTypes: make(map[uuid.UUID]circulation.MembershipType),
		books:           make(map[uuid.UUID]circulation.Book),
	}
}

// clone copies every map. Stored records never share pointer fields with callers,
// so copying the map values is enough.
func (s *state) clone() *state {
	return &state{
		copies:          maps.Clone(s.copies),
		reservations:    maps.Clone(s.reservations),
		loans:           maps.Clone(s.loans),
		fines:           maps.Clone(s.fines),
		members:         maps.Clone(s.members),
		membershipTypes: maps.Clone(s.membershipTypes),
		books:           maps.Clone(s.books),
		nextPosition:    s.nextPosition,
	}
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}

	c := *id

	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := circulation.ToTimestamp(*t)

	return &c
}
