package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avelis/cineseat/internal/domain"
	"github.com/avelis/cineseat/internal/repository"
	redisrepo "github.com/avelis/cineseat/internal/repository/redis"
)

// Store is the read-only projection side of the schema.
type Store interface {
	GetShow(ctx context.Context, showID int64) (*domain.Show, error)
	SeatMap(ctx context.Context, showID int64) ([]domain.ShowSeat, error)
	CountsBySeatState(ctx context.Context, showID int64) (*domain.ShowCounts, error)
	BookingWithSeats(ctx context.Context, bookingID int64) (*domain.BookingWithSeats, error)
	ListTheaters(ctx context.Context) ([]domain.Theater, error)
	ListPendingUsers(ctx context.Context) ([]domain.PendingUser, error)
	ListBookingsForUser(ctx context.Context, email string) ([]domain.UserBookingInfo, error)
}

type Config struct {
	ShowSummaryTTL  time.Duration
	AvailabilityTTL time.Duration
	SeatMapTTL      time.Duration
}

// Service serves showings, seat maps and booking reports. Per-show
// projections go through the Redis cache; the reservation engine invalidates
// them after every committed seat mutation.
type Service struct {
	store Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.ShowSummaryTTL <= 0 {
		cfg.ShowSummaryTTL = 60 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 15 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// GetShow retrieves a showing by its ID through the caching layer.
//
// Returns:
//   - *domain.Show: the showing.
//   - error: query.ErrShowNotFound if the showing is not found.
func (s *Service) GetShow(ctx context.Context, id int64) (*domain.Show, error) {
	const op = "service.query.GetShow"

	show, err := cached(ctx, s, redisrepo.KeyShowSummary(id), s.cfg.ShowSummaryTTL,
		func(ctx context.Context) (domain.Show, error) {
			sh, err := s.store.GetShow(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Show{}, ErrShowNotFound
				}

				return domain.Show{}, err
			}

			return *sh, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &show, nil
}

// SeatMap returns the full seat map of a showing: seat number, price and
// whether the seat is currently free.
//
// Returns:
//   - []domain.ShowSeat: the seat map.
//   - error: query.ErrShowNotFound if the showing is not found.
func (s *Service) SeatMap(ctx context.Context, showID int64) ([]domain.ShowSeat, error) {
	const op = "service.query.SeatMap"

	seats, err := cached(ctx, s, redisrepo.KeyShowSeatMap(showID), s.cfg.SeatMapTTL,
		func(ctx context.Context) ([]domain.ShowSeat, error) {
			seats, err := s.store.SeatMap(ctx, showID)
			if err != nil {
				return nil, err
			}
			if len(seats) == 0 {
				if _, err := s.store.GetShow(ctx, showID); err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						return nil, ErrShowNotFound
					}
					return nil, err
				}
			}
			return seats, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return seats, nil
}

// Availability returns free/booked seat counters for a showing.
//
// Returns:
//   - *domain.ShowCounts: the counters.
//   - error: query.ErrShowNotFound if the showing is not found.
func (s *Service) Availability(ctx context.Context, showID int64) (*domain.ShowCounts, error) {
	const op = "service.query.Availability"

	counts, err := cached(ctx, s, redisrepo.KeyShowAvailability(showID), s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.ShowCounts, error) {
			c, err := s.store.CountsBySeatState(ctx, showID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.ShowCounts{}, ErrShowNotFound
				}

				return domain.ShowCounts{}, err
			}

			return *c, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &counts, nil
}

// GetBooking retrieves a booking with the seats it currently owns.
//
// Returns:
//   - *domain.BookingWithSeats: the booking and its seats.
//   - error: query.ErrBookingNotFound if the booking is not found.
func (s *Service) GetBooking(ctx context.Context, bookingID int64) (*domain.BookingWithSeats, error) {
	const op = "service.query.GetBooking"

	b, err := s.store.BookingWithSeats(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// ListTheaters lists every theater, in id order.
func (s *Service) ListTheaters(ctx context.Context) ([]domain.Theater, error) {
	const op = "service.query.ListTheaters"

	theaters, err := s.store.ListTheaters(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return theaters, nil
}

// ListPendingUsers lists users that currently hold a Pending booking.
func (s *Service) ListPendingUsers(ctx context.Context) ([]domain.PendingUser, error) {
	const op = "service.query.ListPendingUsers"

	users, err := s.store.ListPendingUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return users, nil
}

// ListBookingsForUser returns the booking report for one user: movie title,
// start time, theater and seat numbers per booking.
func (s *Service) ListBookingsForUser(ctx context.Context, email string) ([]domain.UserBookingInfo, error) {
	const op = "service.query.ListBookingsForUser"

	infos, err := s.store.ListBookingsForUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return infos, nil
}

// cached goes through the Redis cache when one is configured and falls back
// to a direct load otherwise.
func cached[T any](
	ctx context.Context,
	s *Service,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if s.cache == nil {
		return loader(ctx)
	}

	return redisrepo.GetOrSetJSON(ctx, s.cache, key, ttl, loader)
}
