package postgres

import (
	"context"

	"github.com/avelis/cineseat/internal/domain"
	"github.com/avelis/cineseat/internal/repository"
)

// BookingRepo owns every mutation of seat ownership and booking rows. Callers
// never touch show_seats.booking_id directly; they go through ClaimSeats and
// ReleaseSeats inside a Store.WithTx transaction.
type BookingRepo struct {
	store *Store
}

// WithTx runs fn inside one serializable store transaction.
func (r *BookingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.WithTx(ctx, fn)
}

// AccountExists reports whether a user with the given email is registered.
func (r *BookingRepo) AccountExists(ctx context.Context, email string) (bool, error) {
	const op = "postgres.BookingRepo.AccountExists"

	db := r.store.handle(ctx)

	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

// ShowExists reports whether the showing is in the catalog.
func (r *BookingRepo) ShowExists(ctx context.Context, showID int64) (bool, error) {
	const op = "postgres.BookingRepo.ShowExists"

	db := r.store.handle(ctx)

	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM shows WHERE sid = $1)`,
		showID,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

// SeatStates returns the requested seats of a showing with their price and
// current owner, in the transaction's view. Seats absent from the result do
// not exist for the showing.
func (r *BookingRepo) SeatStates(
	ctx context.Context,
	showID int64,
	seatNos []int,
) ([]domain.ShowSeat, error) {
	const op = "postgres.BookingRepo.SeatStates"

	db := r.store.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT seat_no, price_cents, booking_id
       	 FROM show_seats
      	 WHERE show_id = $1 AND seat_no = ANY($2)
      	 ORDER BY seat_no`,
		showID, toInt64s(seatNos),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var seats []domain.ShowSeat
	for rows.Next() {
		s := domain.ShowSeat{ShowID: showID}
		if err := rows.Scan(&s.SeatNo, &s.PriceCents, &s.BookingID); err != nil {
			return nil, wrapDBErr(op, err)
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return seats, nil
}

// NextBookingID draws the next id from the booking sequence. Sequence values
// are strictly increasing and never reused, even after purged bookings.
func (r *BookingRepo) NextBookingID(ctx context.Context) (int64, error) {
	const op = "postgres.BookingRepo.NextBookingID"

	db := r.store.handle(ctx)

	var id int64
	if err := db.QueryRow(ctx, `SELECT nextval('booking_ids')`).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *BookingRepo) InsertBooking(ctx context.Context, b domain.Booking) error {
	const op = "postgres.BookingRepo.InsertBooking"

	db := r.store.handle(ctx)

	if _, err := db.Exec(ctx,
		`INSERT INTO bookings(bid, status, email, show_id, seat_count, created_at)
       	 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.Status, b.Email, b.ShowID, b.SeatCount, b.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ClaimSeats sets the owner of every listed seat that is currently free and
// returns how many rows it claimed. A count short of len(seatNos) means at
// least one seat was taken or missing; the caller aborts the transaction, so
// partial claims never commit.
func (r *BookingRepo) ClaimSeats(
	ctx context.Context,
	showID, bookingID int64,
	seatNos []int,
) (int64, error) {
	const op = "postgres.BookingRepo.ClaimSeats"

	db := r.store.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE show_seats
        	SET booking_id = $3
      	 WHERE show_id = $1
        	AND seat_no = ANY($2)
        	AND booking_id IS NULL`,
		showID, toInt64s(seatNos), bookingID,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *BookingRepo) GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetBooking"

	db := r.store.handle(ctx)

	var b domain.Booking
	err := db.QueryRow(ctx,
		`SELECT bid, status, email, show_id, seat_count, created_at
       	 FROM bookings WHERE bid = $1`,
		bookingID,
	).Scan(&b.ID, &b.Status, &b.Email, &b.ShowID, &b.SeatCount, &b.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

// SeatsOwnedBy returns the seats currently pointing at the booking.
func (r *BookingRepo) SeatsOwnedBy(ctx context.Context, bookingID int64) ([]domain.ShowSeat, error) {
	const op = "postgres.BookingRepo.SeatsOwnedBy"

	db := r.store.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT show_id, seat_no, price_cents, booking_id
       	 FROM show_seats
      	 WHERE booking_id = $1
      	 ORDER BY seat_no`,
		bookingID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var seats []domain.ShowSeat
	for rows.Next() {
		var s domain.ShowSeat
		if err := rows.Scan(&s.ShowID, &s.SeatNo, &s.PriceCents, &s.BookingID); err != nil {
			return nil, wrapDBErr(op, err)
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return seats, nil
}

// ReleaseSeats frees every seat owned by the booking and returns the count.
func (r *BookingRepo) ReleaseSeats(ctx context.Context, bookingID int64) (int64, error) {
	const op = "postgres.BookingRepo.ReleaseSeats"

	db := r.store.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE show_seats SET booking_id = NULL WHERE booking_id = $1`,
		bookingID,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *BookingRepo) SetSeatCount(ctx context.Context, bookingID int64, n int) error {
	const op = "postgres.BookingRepo.SetSeatCount"

	db := r.store.handle(ctx)

	tag, err := db.Exec(ctx,
		`UPDATE bookings SET seat_count = $2 WHERE bid = $1`,
		bookingID, n,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

// CancelPending releases the seats of every Pending booking and flips the
// bookings to Cancelled, returning the bookings it cancelled. Both statements
// run in the caller's transaction, so a booking is never observed Cancelled
// while still owning seats.
func (r *BookingRepo) CancelPending(ctx context.Context) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.CancelPending"

	db := r.store.handle(ctx)

	if _, err := db.Exec(ctx,
		`UPDATE show_seats
        	SET booking_id = NULL
      	 WHERE booking_id IN (SELECT bid FROM bookings WHERE status = $1)`,
		domain.BookingPending,
	); err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`UPDATE bookings SET status = $2, seat_count = 0 WHERE status = $1
      	 RETURNING bid, email, show_id`,
		domain.BookingPending, domain.BookingCancelled,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var cancelled []domain.Booking
	for rows.Next() {
		b := domain.Booking{Status: domain.BookingCancelled}
		if err := rows.Scan(&b.ID, &b.Email, &b.ShowID); err != nil {
			return nil, wrapDBErr(op, err)
		}
		cancelled = append(cancelled, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return cancelled, nil
}

// PurgeCancelled removes Cancelled booking rows. Cancelled bookings own zero
// seats by construction, so there is no seat-release step here.
func (r *BookingRepo) PurgeCancelled(ctx context.Context) (int64, error) {
	const op = "postgres.BookingRepo.PurgeCancelled"

	db := r.store.handle(ctx)

	tag, err := db.Exec(ctx,
		`DELETE FROM bookings WHERE status = $1`,
		domain.BookingCancelled,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func toInt64s(ns []int) []int64 {
	out := make([]int64, len(ns))
	for i, n := range ns {
		out[i] = int64(n)
	}
	return out
}
