package postgres

import (
	"context"

	"github.com/avelis/cineseat/internal/domain"
	"github.com/avelis/cineseat/internal/repository"
)

// QueryRepo serves read-only projections. Nothing here mutates state, so
// every method is safe against the pool without a transaction.
type QueryRepo struct {
	store *Store
}

func (r *QueryRepo) GetShow(ctx context.Context, showID int64) (*domain.Show, error) {
	const op = "postgres.QueryRepo.GetShow"

	db := r.store.handle(ctx)

	var s domain.Show
	err := db.QueryRow(ctx,
		`SELECT sid, mvid, tid, starts_at, ends_at
       	 FROM shows WHERE sid = $1`,
		showID,
	).Scan(&s.ID, &s.MovieID, &s.TheaterID, &s.Starts, &s.Ends)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// SeatMap returns every seat of a showing with price and current owner.
func (r *QueryRepo) SeatMap(ctx context.Context, showID int64) ([]domain.ShowSeat, error) {
	const op = "postgres.QueryRepo.SeatMap"

	db := r.store.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT show_id, seat_no, price_cents, booking_id
       	 FROM show_seats
      	 WHERE show_id = $1
      	 ORDER BY seat_no`,
		showID,
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

// CountsBySeatState returns free/booked/total seat counters for a showing.
func (r *QueryRepo) CountsBySeatState(ctx context.Context, showID int64) (*domain.ShowCounts, error) {
	const op = "postgres.QueryRepo.CountsBySeatState"

	db := r.store.handle(ctx)

	var c domain.ShowCounts
	err := db.QueryRow(ctx,
		`SELECT
         	COUNT(*) FILTER (WHERE booking_id IS NULL),
         	COUNT(*) FILTER (WHERE booking_id IS NOT NULL),
         	COUNT(*)
       	 FROM show_seats WHERE show_id = $1`,
		showID,
	).Scan(&c.Free, &c.Booked, &c.Total)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if c.Total == 0 {
		// distinguish "no seats" from "no such show"
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM shows WHERE sid = $1)`,
			showID,
		).Scan(&exists); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if !exists {
			return nil, wrapDBErr(op, repository.ErrNotFound)
		}
	}

	return &c, nil
}

func (r *QueryRepo) BookingWithSeats(ctx context.Context, bookingID int64) (*domain.BookingWithSeats, error) {
	const op = "postgres.QueryRepo.BookingWithSeats"

	db := r.store.handle(ctx)

	var out domain.BookingWithSeats
	b := &out.Booking
	err := db.QueryRow(ctx,
		`SELECT bid, status, email, show_id, seat_count, created_at
       	 FROM bookings WHERE bid = $1`,
		bookingID,
	).Scan(&b.ID, &b.Status, &b.Email, &b.ShowID, &b.SeatCount, &b.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

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

	for rows.Next() {
		var s domain.ShowSeat
		if err := rows.Scan(&s.ShowID, &s.SeatNo, &s.PriceCents, &s.BookingID); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out.Seats = append(out.Seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &out, nil
}

// ListPendingUsers lists users that currently have at least one Pending
// booking.
func (r *QueryRepo) ListTheaters(ctx context.Context) ([]domain.Theater, error) {
	const op = "postgres.QueryRepo.ListTheaters"

	db := r.store.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT tid, name FROM theaters ORDER BY tid`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var theaters []domain.Theater
	for rows.Next() {
		var t domain.Theater
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, wrapDBErr(op, err)
		}
		theaters = append(theaters, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return theaters, nil
}

func (r *QueryRepo) ListPendingUsers(ctx context.Context) ([]domain.PendingUser, error) {
	const op = "postgres.QueryRepo.ListPendingUsers"

	db := r.store.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT DISTINCT u.fname, u.lname, u.email
       	 FROM users u
       	 JOIN bookings b ON b.email = u.email
      	 WHERE b.status = $1
      	 ORDER BY u.email`,
		domain.BookingPending,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var users []domain.PendingUser
	for rows.Next() {
		var u domain.PendingUser
		if err := rows.Scan(&u.FirstName, &u.LastName, &u.Email); err != nil {
			return nil, wrapDBErr(op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return users, nil
}

// ListBookingsForUser returns the per-user booking report: movie title, start
// time, theater name and seat numbers for each of the user's bookings.
func (r *QueryRepo) ListBookingsForUser(ctx context.Context, email string) ([]domain.UserBookingInfo, error) {
	const op = "postgres.QueryRepo.ListBookingsForUser"

	db := r.store.handle(ctx)

	rows, err := db.Query(ctx,
		`SELECT b.bid, b.status, m.title, s.starts_at, t.name,
            	array_remove(array_agg(ss.seat_no ORDER BY ss.seat_no), NULL)
       	 FROM bookings b
       	 JOIN shows s     ON s.sid = b.show_id
       	 JOIN movies m    ON m.mvid = s.mvid
       	 JOIN theaters t  ON t.tid = s.tid
       	 LEFT JOIN show_seats ss ON ss.booking_id = b.bid
      	 WHERE b.email = $1
      	 GROUP BY b.bid, b.status, m.title, s.starts_at, t.name
      	 ORDER BY b.bid`,
		email,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var infos []domain.UserBookingInfo
	for rows.Next() {
		var info domain.UserBookingInfo
		var seatNos []int64
		if err := rows.Scan(
			&info.BookingID, &info.Status, &info.MovieTitle,
			&info.Starts, &info.TheaterName, &seatNos,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		for _, n := range seatNos {
			info.SeatNos = append(info.SeatNos, int(n))
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return infos, nil
}
