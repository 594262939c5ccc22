package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/avelis/cineseat/internal/clock"
	"github.com/avelis/cineseat/internal/domain"
	"github.com/avelis/cineseat/internal/queue"
	"github.com/avelis/cineseat/internal/repository"
	redisrepo "github.com/avelis/cineseat/internal/repository/redis"
	"github.com/avelis/cineseat/internal/uow"
)

// Store is the transactional seat/booking store the engine runs against.
// Implementations must make WithTx atomic and serializable: every check and
// claim the engine performs inside one WithTx call either all commit or all
// roll back, and two transactions touching the same seat are serialized.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	AccountExists(ctx context.Context, email string) (bool, error)
	ShowExists(ctx context.Context, showID int64) (bool, error)
	SeatStates(ctx context.Context, showID int64, seatNos []int) ([]domain.ShowSeat, error)
	NextBookingID(ctx context.Context) (int64, error)
	InsertBooking(ctx context.Context, b domain.Booking) error
	ClaimSeats(ctx context.Context, showID, bookingID int64, seatNos []int) (int64, error)
	GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error)
	SeatsOwnedBy(ctx context.Context, bookingID int64) ([]domain.ShowSeat, error)
	ReleaseSeats(ctx context.Context, bookingID int64) (int64, error)
	SetSeatCount(ctx context.Context, bookingID int64, n int) error
	CancelPending(ctx context.Context) ([]domain.Booking, error)
	PurgeCancelled(ctx context.Context) (int64, error)
}

// Service is the reservation engine. It holds no mutable state of its own;
// all coordination between concurrent callers happens through the store's
// transactions.
type Service struct {
	store   Store
	cache   *redisrepo.Cache
	pubsub  *redisrepo.ShowsPubSub
	limiter *redisrepo.SlidingWindowLimiter
	events  *queue.Publisher
	clock   clock.Clock
	uow     *uow.UoW
}

func New(
	store Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.ShowsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	events *queue.Publisher,
	clk clock.Clock,
) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		events:  events,
		clock:   clk,
		uow:     uow.New(store),
	}
}

type BookInput struct {
	ShowID  int64
	SeatNos []int
	Email   string
	Status  domain.BookingStatus // defaults to Pending
}

// Book claims every requested seat for a new booking, all-or-nothing.
//
// Validation (empty set, duplicates, unknown account/show/seat, taken seats)
// happens before any mutation; the insert-and-claim runs as one serializable
// transaction, so of two concurrent calls sharing a seat exactly one wins
// and the other observes SeatsBookedError or ErrStoreConflict.
//
// Returns:
//   - *domain.Booking: the created booking when successful.
//   - error: ErrEmptySeatSet, DuplicateSeatError, ErrAccountNotFound,
//     ErrShowNotFound, SeatsNotFoundError, SeatsBookedError,
//     ErrStoreConflict (retryable), ErrStoreUnavailable.
func (s *Service) Book(ctx context.Context, in BookInput, rlKey string) (*domain.Booking, error) {
	const op = "service.booking.Book"

	seatNos, err := normalizeSeats(in.SeatNos)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	status := in.Status
	if status == "" {
		status = domain.BookingPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%s:%w: %q", op, ErrInvalidStatus, in.Status)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: retry})
		}
	}

	var booked domain.Booking

	err = s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		ok, err := s.store.AccountExists(ctx, in.Email)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAccountNotFound
		}

		ok, err = s.store.ShowExists(ctx, in.ShowID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrShowNotFound
		}

		if err := s.checkSeatsFree(ctx, in.ShowID, seatNos, 0); err != nil {
			return err
		}

		id, err := s.store.NextBookingID(ctx)
		if err != nil {
			return err
		}

		b := domain.Booking{
			ID:        id,
			Status:    status,
			Email:     in.Email,
			ShowID:    in.ShowID,
			SeatCount: len(seatNos),
			CreatedAt: s.clock.Now(),
		}
		if err := s.store.InsertBooking(ctx, b); err != nil {
			return err
		}

		claimed, err := s.store.ClaimSeats(ctx, in.ShowID, id, seatNos)
		if err != nil {
			return err
		}
		if claimed != int64(len(seatNos)) {
			// a concurrent claim got in between the check and ours;
			// name the contested seats and roll everything back
			if err := s.checkSeatsFree(ctx, in.ShowID, seatNos, id); err != nil {
				return err
			}
			return repository.ErrSerialization
		}

		booked = b

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateShow(ctx, in.ShowID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishShowChanged(ctx, in.ShowID)
			}
			if s.events != nil {
				_ = s.events.PublishBookingCreated(ctx, queue.BookingCreatedEvent{
					BookingID: b.ID,
					ShowID:    b.ShowID,
					Email:     b.Email,
					Status:    string(b.Status),
					SeatNos:   seatNos,
					CreatedAt: b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				})
			}
		})

		return nil
	})
	if err != nil {
		return nil, s.wrap(op, err)
	}

	return &booked, nil
}

// Reassign replaces a booking's seat set in place. The new seats must belong
// to the booking's showing and be free or already owned by this booking, and
// the new total price must equal the old one exactly. Release, claim and
// seat-count update commit together; the booking is never observed holding a
// mixed old/new set.
func (s *Service) Reassign(ctx context.Context, bookingID int64, newSeatNos []int) (*domain.Booking, error) {
	const op = "service.booking.Reassign"

	seatNos, err := normalizeSeats(newSeatNos)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var updated domain.Booking

	err = s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		b, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		oldSeats, err := s.store.SeatsOwnedBy(ctx, bookingID)
		if err != nil {
			return err
		}

		states, err := s.store.SeatStates(ctx, b.ShowID, seatNos)
		if err != nil {
			return err
		}

		missing, taken := splitUnavailable(seatNos, states, bookingID)
		if len(missing) > 0 {
			return SeatsNotFoundError{SeatNos: missing}
		}
		if len(taken) > 0 {
			return SeatsBookedError{SeatNos: taken}
		}

		oldTotal := sumPrices(oldSeats)
		newTotal := sumPrices(states)
		if newTotal != oldTotal {
			return PriceMismatchError{OldCents: oldTotal, NewCents: newTotal}
		}

		if _, err := s.store.ReleaseSeats(ctx, bookingID); err != nil {
			return err
		}

		claimed, err := s.store.ClaimSeats(ctx, b.ShowID, bookingID, seatNos)
		if err != nil {
			return err
		}
		if claimed != int64(len(seatNos)) {
			if err := s.checkSeatsFree(ctx, b.ShowID, seatNos, bookingID); err != nil {
				return err
			}
			return repository.ErrSerialization
		}

		if err := s.store.SetSeatCount(ctx, bookingID, len(seatNos)); err != nil {
			return err
		}

		updated = *b
		updated.SeatCount = len(seatNos)

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateShow(ctx, b.ShowID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishShowChanged(ctx, b.ShowID)
			}
			if s.events != nil {
				_ = s.events.PublishBookingReassigned(ctx, queue.BookingReassignedEvent{
					BookingID: bookingID,
					ShowID:    b.ShowID,
					SeatNos:   seatNos,
				})
			}
		})

		return nil
	})
	if err != nil {
		return nil, s.wrap(op, err)
	}

	return &updated, nil
}

// ReleaseStalePending cancels every Pending booking and frees its seats in
// one transaction, returning how many bookings it cancelled. Safe to run
// concurrently with Book and Reassign: the store serializes it against any
// transaction touching the same bookings or seats.
func (s *Service) ReleaseStalePending(ctx context.Context) (int64, error) {
	const op = "service.booking.ReleaseStalePending"

	var cancelled []domain.Booking

	err := s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		var err error
		cancelled, err = s.store.CancelPending(ctx)
		if err != nil {
			return err
		}

		if len(cancelled) == 0 {
			return nil
		}

		after(func(ctx context.Context) {
			ids := make([]int64, 0, len(cancelled))
			for _, showID := range distinctShowIDs(cancelled) {
				if s.cache != nil {
					_ = s.cache.InvalidateShow(ctx, showID)
				}
				if s.pubsub != nil {
					_ = s.pubsub.PublishShowChanged(ctx, showID)
				}
			}
			for _, b := range cancelled {
				ids = append(ids, b.ID)
			}
			if s.events != nil {
				_ = s.events.PublishBookingsReleased(ctx, queue.BookingsReleasedEvent{
					BookingIDs: ids,
					ReleasedAt: s.clock.Now().Format("2006-01-02T15:04:05Z07:00"),
				})
			}
		})

		return nil
	})
	if err != nil {
		return 0, s.wrap(op, err)
	}

	return int64(len(cancelled)), nil
}

// PurgeCancelled deletes Cancelled booking rows and returns how many were
// removed. Cancelled bookings own zero seats by construction, so no seats
// change hands here.
func (s *Service) PurgeCancelled(ctx context.Context) (int64, error) {
	const op = "service.booking.PurgeCancelled"

	removed, err := s.store.PurgeCancelled(ctx)
	if err != nil {
		return 0, s.wrap(op, err)
	}

	return removed, nil
}

// checkSeatsFree fails with a per-seat diagnosis unless every listed seat
// exists for the showing and is free (or owned by selfID, when nonzero).
func (s *Service) checkSeatsFree(ctx context.Context, showID int64, seatNos []int, selfID int64) error {
	states, err := s.store.SeatStates(ctx, showID, seatNos)
	if err != nil {
		return err
	}

	missing, taken := splitUnavailable(seatNos, states, selfID)
	if len(missing) > 0 {
		return SeatsNotFoundError{SeatNos: missing}
	}
	if len(taken) > 0 {
		return SeatsBookedError{SeatNos: taken}
	}

	return nil
}

func (s *Service) wrap(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrSerialization):
		return fmt.Errorf("%s:%w", op, ErrStoreConflict)
	case errors.Is(err, repository.ErrUnavailable):
		return fmt.Errorf("%s:%w", op, ErrStoreUnavailable)
	}

	return fmt.Errorf("%s:%w", op, err)
}

func normalizeSeats(seatNos []int) ([]int, error) {
	if len(seatNos) == 0 {
		return nil, ErrEmptySeatSet
	}

	seen := make(map[int]struct{}, len(seatNos))
	out := make([]int, 0, len(seatNos))
	for _, n := range seatNos {
		if _, dup := seen[n]; dup {
			return nil, DuplicateSeatError{SeatNo: n}
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	sort.Ints(out)

	return out, nil
}

// splitUnavailable partitions the requested seats into those missing from
// the showing's seat map and those owned by a booking other than selfID.
func splitUnavailable(seatNos []int, states []domain.ShowSeat, selfID int64) (missing, taken []int) {
	byNo := make(map[int]domain.ShowSeat, len(states))
	for _, s := range states {
		byNo[s.SeatNo] = s
	}

	for _, n := range seatNos {
		st, ok := byNo[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		if st.BookingID != nil && (selfID == 0 || *st.BookingID != selfID) {
			taken = append(taken, n)
		}
	}

	return missing, taken
}

func sumPrices(seats []domain.ShowSeat) int {
	total := 0
	for _, s := range seats {
		total += s.PriceCents
	}
	return total
}

func distinctShowIDs(bookings []domain.Booking) []int64 {
	seen := make(map[int64]struct{}, len(bookings))
	var ids []int64
	for _, b := range bookings {
		if _, ok := seen[b.ShowID]; ok {
			continue
		}
		seen[b.ShowID] = struct{}{}
		ids = append(ids, b.ShowID)
	}
	return ids
}
