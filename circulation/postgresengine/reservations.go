package postgresengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine/internal/adapters"
)

const (
	colPosition   = "position"
	colMemberID   = "member_id"
	colHeldCopyID = "held_copy_id"
	colExpiresAt  = "expires_at"

	actionInsertReservation       = "insert_reservation"
	actionFindReservation         = "find_reservation"
	actionListPendingReservations = "list_pending_reservations"
	actionFindOpenReservation     = "find_open_reservation"
	actionListExpiredReady        = "list_expired_ready_reservations"
	actionUpdateReservation       = "update_reservation"
	actionDeleteReservation       = "delete_reservation"
)

func (t *pgTx) selectReservations() *goqu.SelectDataset {
	return t.store.dialect.
		From(t.store.table(tableReservations)).
		Select(
			goqu.Cast(goqu.C(colID), castText),
			goqu.C(colPosition),
			goqu.Cast(goqu.C(colBookID), castText),
			goqu.Cast(goqu.C(colMemberID), castText),
			goqu.C(colStatus),
			goqu.Cast(goqu.C(colHeldCopyID), castText),
			goqu.C(colCreatedAt),
			goqu.C(colExpiresAt),
		)
}

func scanReservation(rows adapters.DBRows) (circulation.Reservation, error) {
	var (
		id, bookID, memberID, status string
		heldCopyID                   *string
		createdAt                    time.Time
		expiresAt                    *time.Time
		reservation                  circulation.Reservation
	)

	err := rows.Scan(&id, &reservation.Position, &bookID, &memberID, &status, &heldCopyID, &createdAt, &expiresAt)
	if err != nil {
		return circulation.Reservation{}, err
	}

	p := rowParser{}
	reservation.ID = p.uuid(id)
	reservation.BookID = p.uuid(bookID)
	reservation.MemberID = p.uuid(memberID)
	reservation.Status = circulation.ReservationStatus(status)
	reservation.HeldCopyID = p.optionalUUID(heldCopyID)
	reservation.CreatedAt = circulation.ToTimestamp(createdAt)
	reservation.ExpiresAt = optionalTimestamp(expiresAt)

	return reservation, p.err
}

func openReservationStatuses() []string {
	return []string{string(circulation.ReservationPending), string(circulation.ReservationReadyForPickup)}
}

// InsertReservation appends a reservation and returns it with its assigned Position.
// A second open reservation for the same book and member violates a partial unique index and is a conflict.
func (t *pgTx) InsertReservation(
	ctx context.Context,
	reservation circulation.Reservation,
) (circulation.Reservation, error) {

	ds := t.store.dialect.
		Insert(t.store.table(tableReservations)).
		Rows(goqu.Record{
			colID:         reservation.ID.String(),
			colBookID:     reservation.BookID.String(),
			colMemberID:   reservation.MemberID.String(),
			colStatus:     string(reservation.Status),
			colHeldCopyID: nullableUUID(reservation.HeldCopyID),
			colCreatedAt:  reservation.CreatedAt.UTC(),
			colExpiresAt:  nullableTime(reservation.ExpiresAt),
		}).
		Returning(goqu.C(colPosition))

	position, err := queryOne(
		ctx, t, actionInsertReservation, ds,
		func(rows adapters.DBRows) (int64, error) {
			var position int64
			err := rows.Scan(&position)

			return position, err
		},
		circulation.ErrReservationNotFound,
	)
	if err != nil {
		return circulation.Reservation{}, err
	}

	reservation.Position = position

	return reservation, nil
}

// FindReservation loads one reservation.
func (t *pgTx) FindReservation(ctx context.Context, reservationID uuid.UUID) (circulation.Reservation, error) {
	ds := t.selectReservations().Where(goqu.C(colID).Eq(reservationID.String()))

	return queryOne(ctx, t, actionFindReservation, ds, scanReservation, circulation.ErrReservationNotFound)
}

// ListPendingReservations returns the book's PENDING entries in service order.
func (t *pgTx) ListPendingReservations(ctx context.Context, bookID uuid.UUID) ([]circulation.Reservation, error) {
	ds := t.selectReservations().
		Where(goqu.Ex{
			colBookID: bookID.String(),
			colStatus: string(circulation.ReservationPending),
		}).
		Order(goqu.C(colCreatedAt).Asc(), goqu.C(colPosition).Asc())

	return queryAll(ctx, t, actionListPendingReservations, ds, scanReservation)
}

// FindOpenReservation returns the member's PENDING or READY_FOR_PICKUP reservation for the book.
func (t *pgTx) FindOpenReservation(
	ctx context.Context,
	bookID, memberID uuid.UUID,
) (circulation.Reservation, bool, error) {

	ds := t.selectReservations().
		Where(goqu.Ex{
			colBookID:   bookID.String(),
			colMemberID: memberID.String(),
			colStatus:   openReservationStatuses(),
		})

	return queryFirst(ctx, t, actionFindOpenReservation, ds, scanReservation)
}

// ListReadyReservationsExpiredBy returns READY_FOR_PICKUP reservations whose pickup window closed before at.
func (t *pgTx) ListReadyReservationsExpiredBy(ctx context.Context, at time.Time) ([]circulation.Reservation, error) {
	ds := t.selectReservations().
		Where(
			goqu.C(colStatus).Eq(string(circulation.ReservationReadyForPickup)),
			goqu.C(colExpiresAt).Lt(at.UTC()),
		).
		Order(goqu.C(colExpiresAt).Asc(), goqu.C(colPosition).Asc())

	return queryAll(ctx, t, actionListExpiredReady, ds, scanReservation)
}

// UpdateReservation writes status, held copy and expiry if the stored status still equals from.
func (t *pgTx) UpdateReservation(
	ctx context.Context,
	reservation circulation.Reservation,
	from circulation.ReservationStatus,
) error {

	ds := t.store.dialect.
		Update(t.store.table(tableReservations)).
		Set(goqu.Record{
			colStatus:     string(reservation.Status),
			colHeldCopyID: nullableUUID(reservation.HeldCopyID),
			colExpiresAt:  nullableTime(reservation.ExpiresAt),
		}).
		Where(goqu.Ex{
			colID:     reservation.ID.String(),
			colStatus: string(from),
		})

	return t.execCompareAndSet(ctx, actionUpdateReservation, ds)
}

// DeleteReservation removes a reservation.
func (t *pgTx) DeleteReservation(ctx context.Context, reservationID uuid.UUID) error {
	ds := t.store.dialect.
		Delete(t.store.table(tableReservations)).
		Where(goqu.C(colID).Eq(reservationID.String()))

	return t.execExpectingRow(ctx, actionDeleteReservation, ds, circulation.ErrReservationNotFound)
}
