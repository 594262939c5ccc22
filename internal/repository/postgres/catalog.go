package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/avelis/cineseat/internal/domain"
)

// CatalogRepo writes the read-mostly side of the schema: accounts, movies,
// theaters, showings and their seat maps. It never touches seat ownership.
type CatalogRepo struct {
	store *Store
}

func (r *CatalogRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.store.WithTx(ctx, fn)
}

func (r *CatalogRepo) CreateUser(ctx context.Context, u domain.User, password string) error {
	const op = "postgres.CatalogRepo.CreateUser"

	db := r.store.handle(ctx)

	if _, err := db.Exec(ctx,
		`INSERT INTO users(email, fname, lname, phone, pwd)
       	 VALUES ($1, $2, $3, $4, $5)`,
		u.Email, u.FirstName, u.LastName, u.Phone, password,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CatalogRepo) CreateTheater(ctx context.Context, name string) (int64, error) {
	const op = "postgres.CatalogRepo.CreateTheater"

	db := r.store.handle(ctx)

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO theaters(name) VALUES ($1) RETURNING tid`,
		name,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) TheaterExists(ctx context.Context, theaterID int64) (bool, error) {
	const op = "postgres.CatalogRepo.TheaterExists"

	db := r.store.handle(ctx)

	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM theaters WHERE tid = $1)`,
		theaterID,
	).Scan(&exists)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return exists, nil
}

func (r *CatalogRepo) CreateMovie(ctx context.Context, m domain.Movie) (int64, error) {
	const op = "postgres.CatalogRepo.CreateMovie"

	db := r.store.handle(ctx)

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO movies(title, rdate, country, description, duration_min, lang, genre)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7)
     	 RETURNING mvid`,
		m.Title, m.ReleaseDate, m.Country, m.Description, m.DurationMin, m.Language, m.Genre,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *CatalogRepo) CreateShow(ctx context.Context, s domain.Show) (int64, error) {
	const op = "postgres.CatalogRepo.CreateShow"

	db := r.store.handle(ctx)

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO shows(mvid, tid, starts_at, ends_at)
       	 VALUES ($1, $2, $3, $4)
     	 RETURNING sid`,
		s.MovieID, s.TheaterID, s.Starts, s.Ends,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// CreateShowSeats inserts the seat map of a showing, one row per numbered
// seat with its fixed price. Every seat starts free.
func (r *CatalogRepo) CreateShowSeats(
	ctx context.Context,
	showID int64,
	seats []domain.ShowSeat,
) error {
	const op = "postgres.CatalogRepo.CreateShowSeats"

	db := r.store.handle(ctx)

	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(
			`INSERT INTO show_seats(show_id, seat_no, price_cents)
         	 VALUES ($1, $2, $3)
       		 ON CONFLICT (show_id, seat_no) DO NOTHING`,
			showID, s.SeatNo, s.PriceCents,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
