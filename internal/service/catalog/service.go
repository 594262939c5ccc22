package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/avelis/cineseat/internal/domain"
	"github.com/avelis/cineseat/internal/repository"
	"github.com/avelis/cineseat/internal/uow"
)

// Store is the catalog side of the schema: accounts, movies, theaters,
// showings and seat maps. Nothing here touches seat ownership.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateUser(ctx context.Context, u domain.User, password string) error
	CreateTheater(ctx context.Context, name string) (int64, error)
	TheaterExists(ctx context.Context, theaterID int64) (bool, error)
	CreateMovie(ctx context.Context, m domain.Movie) (int64, error)
	CreateShow(ctx context.Context, s domain.Show) (int64, error)
	CreateShowSeats(ctx context.Context, showID int64, seats []domain.ShowSeat) error
}

type Service struct {
	store Store
	uow   *uow.UoW
}

func New(store Store) *Service {
	return &Service{
		store: store,
		uow:   uow.New(store),
	}
}

// CreateUser registers an account. A random placeholder password is stored;
// the user sets a real one through an out-of-band flow.
//
// Returns:
//   - error: catalog.ErrUserExists if the email is taken.
//   - error: catalog.InvalidFieldError for a rejected field.
func (s *Service) CreateUser(ctx context.Context, u domain.User) error {
	const op = "service.catalog.CreateUser"

	if err := validateUser(u); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.CreateUser(ctx, u, randomPassword()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%s:%w", op, ErrUserExists)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) CreateTheater(ctx context.Context, name string) (int64, error) {
	const op = "service.catalog.CreateTheater"

	if name == "" {
		return 0, fmt.Errorf("%s:%w", op, InvalidFieldError{Field: "name", Reason: "cannot be empty"})
	}

	id, err := s.store.CreateTheater(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return id, nil
}

type SeatPrice struct {
	SeatNo     int
	PriceCents int
}

type AddShowingInput struct {
	Movie     domain.Movie
	TheaterID int64
	Starts    time.Time
	Ends      time.Time
	Seats     []SeatPrice
}

type AddShowingResult struct {
	MovieID int64
	ShowID  int64
}

// AddShowing inserts a movie, its showing at a theater and the showing's
// priced seat map in one transaction, so a showing never appears without
// seats.
//
// Returns:
//   - AddShowingResult: the created movie and show IDs.
//   - error: catalog.ErrTheaterNotFound, catalog.ErrNoSeats,
//     catalog.InvalidFieldError.
func (s *Service) AddShowing(ctx context.Context, in AddShowingInput) (AddShowingResult, error) {
	const op = "service.catalog.AddShowing"

	if in.Movie.Title == "" {
		return AddShowingResult{}, fmt.Errorf("%s:%w", op,
			InvalidFieldError{Field: "title", Reason: "cannot be empty"})
	}
	if len(in.Seats) == 0 {
		return AddShowingResult{}, fmt.Errorf("%s:%w", op, ErrNoSeats)
	}
	if !in.Ends.After(in.Starts) {
		return AddShowingResult{}, fmt.Errorf("%s:%w", op,
			InvalidFieldError{Field: "ends_at", Reason: "must be after starts_at"})
	}

	var res AddShowingResult

	err := s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		ok, err := s.store.TheaterExists(ctx, in.TheaterID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTheaterNotFound
		}

		movieID, err := s.store.CreateMovie(ctx, in.Movie)
		if err != nil {
			return err
		}

		showID, err := s.store.CreateShow(ctx, domain.Show{
			MovieID:   movieID,
			TheaterID: in.TheaterID,
			Starts:    in.Starts,
			Ends:      in.Ends,
		})
		if err != nil {
			return err
		}

		seats := make([]domain.ShowSeat, 0, len(in.Seats))
		for _, sp := range in.Seats {
			seats = append(seats, domain.ShowSeat{
				ShowID:     showID,
				SeatNo:     sp.SeatNo,
				PriceCents: sp.PriceCents,
			})
		}
		if err := s.store.CreateShowSeats(ctx, showID, seats); err != nil {
			return err
		}

		res = AddShowingResult{MovieID: movieID, ShowID: showID}

		return nil
	})
	if err != nil {
		return AddShowingResult{}, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func validateUser(u domain.User) error {
	if u.FirstName == "" {
		return InvalidFieldError{Field: "fname", Reason: "cannot be empty"}
	}
	if u.LastName == "" {
		return InvalidFieldError{Field: "lname", Reason: "cannot be empty"}
	}
	if u.Email == "" {
		return InvalidFieldError{Field: "email", Reason: "cannot be empty"}
	}
	// phone is optional, but must be 10 digits when present
	if u.Phone != "" {
		if len(u.Phone) != 10 {
			return InvalidFieldError{Field: "phone", Reason: "must be 10 digits"}
		}
		for _, r := range u.Phone {
			if r < '0' || r > '9' {
				return InvalidFieldError{Field: "phone", Reason: "must be 10 digits"}
			}
		}
	}
	return nil
}

func randomPassword() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
