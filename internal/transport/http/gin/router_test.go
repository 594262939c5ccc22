package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/avelis/cineseat/internal/clock"
	"github.com/avelis/cineseat/internal/domain"
	"github.com/avelis/cineseat/internal/repository"
	"github.com/avelis/cineseat/internal/service"
	"github.com/avelis/cineseat/internal/service/booking"
	"github.com/avelis/cineseat/internal/service/catalog"
	"github.com/avelis/cineseat/internal/service/query"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore backs all three services in handler tests. One mutex serializes
// transactions; a snapshot restores seat and booking state when a
// transaction fails.
type memStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	theaters map[int64]string
	movies   map[int64]domain.Movie
	shows    map[int64]domain.Show
	seats    map[int64]map[int]*memSeat
	bookings map[int64]domain.Booking
	nextID   int64
	nextBID  int64

	// txErr fails WithTx up front, standing in for a lost connection.
	txErr error
}

type memSeat struct {
	priceCents int
	bookingID  *int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]domain.User),
		theaters: make(map[int64]string),
		movies:   make(map[int64]domain.Movie),
		shows:    make(map[int64]domain.Show),
		seats:    make(map[int64]map[int]*memSeat),
		bookings: make(map[int64]domain.Booking),
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.txErr != nil {
		return m.txErr
	}

	seats := make(map[int64]map[int]*memSeat, len(m.seats))
	for showID, sm := range m.seats {
		cp := make(map[int]*memSeat, len(sm))
		for no, st := range sm {
			s := *st
			cp[no] = &s
		}
		seats[showID] = cp
	}
	bookings := make(map[int64]domain.Booking, len(m.bookings))
	for id, b := range m.bookings {
		bookings[id] = b
	}

	if err := fn(ctx); err != nil {
		m.seats, m.bookings = seats, bookings
		return err
	}
	return nil
}

// booking.Store

func (m *memStore) AccountExists(ctx context.Context, email string) (bool, error) {
	_, ok := m.users[email]
	return ok, nil
}

func (m *memStore) ShowExists(ctx context.Context, showID int64) (bool, error) {
	_, ok := m.shows[showID]
	return ok, nil
}

func (m *memStore) SeatStates(ctx context.Context, showID int64, seatNos []int) ([]domain.ShowSeat, error) {
	var out []domain.ShowSeat
	for _, no := range seatNos {
		st, ok := m.seats[showID][no]
		if !ok {
			continue
		}
		out = append(out, m.toShowSeat(showID, no, st))
	}
	return out, nil
}

func (m *memStore) toShowSeat(showID int64, no int, st *memSeat) domain.ShowSeat {
	seat := domain.ShowSeat{ShowID: showID, SeatNo: no, PriceCents: st.priceCents}
	if st.bookingID != nil {
		id := *st.bookingID
		seat.BookingID = &id
	}
	return seat
}

func (m *memStore) NextBookingID(ctx context.Context) (int64, error) {
	m.nextBID++
	return m.nextBID, nil
}

func (m *memStore) InsertBooking(ctx context.Context, b domain.Booking) error {
	if _, ok := m.bookings[b.ID]; ok {
		return repository.ErrConflict
	}
	m.bookings[b.ID] = b
	return nil
}

func (m *memStore) ClaimSeats(ctx context.Context, showID, bookingID int64, seatNos []int) (int64, error) {
	var claimed int64
	for _, no := range seatNos {
		st, ok := m.seats[showID][no]
		if !ok || st.bookingID != nil {
			continue
		}
		id := bookingID
		st.bookingID = &id
		claimed++
	}
	return claimed, nil
}

func (m *memStore) GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *memStore) SeatsOwnedBy(ctx context.Context, bookingID int64) ([]domain.ShowSeat, error) {
	var out []domain.ShowSeat
	for showID, sm := range m.seats {
		for no, st := range sm {
			if st.bookingID != nil && *st.bookingID == bookingID {
				out = append(out, m.toShowSeat(showID, no, st))
			}
		}
	}
	return out, nil
}

func (m *memStore) ReleaseSeats(ctx context.Context, bookingID int64) (int64, error) {
	var released int64
	for _, sm := range m.seats {
		for _, st := range sm {
			if st.bookingID != nil && *st.bookingID == bookingID {
				st.bookingID = nil
				released++
			}
		}
	}
	return released, nil
}

func (m *memStore) SetSeatCount(ctx context.Context, bookingID int64, n int) error {
	b, ok := m.bookings[bookingID]
	if !ok {
		return repository.ErrNotFound
	}
	b.SeatCount = n
	m.bookings[bookingID] = b
	return nil
}

func (m *memStore) CancelPending(ctx context.Context) ([]domain.Booking, error) {
	var cancelled []domain.Booking
	for id, b := range m.bookings {
		if b.Status != domain.BookingPending {
			continue
		}
		if _, err := m.ReleaseSeats(ctx, id); err != nil {
			return nil, err
		}
		b.Status = domain.BookingCancelled
		b.SeatCount = 0
		m.bookings[id] = b
		cancelled = append(cancelled, b)
	}
	return cancelled, nil
}

func (m *memStore) PurgeCancelled(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, b := range m.bookings {
		if b.Status == domain.BookingCancelled {
			delete(m.bookings, id)
			removed++
		}
	}
	return removed, nil
}

// catalog.Store

func (m *memStore) CreateUser(ctx context.Context, u domain.User, password string) error {
	if _, ok := m.users[u.Email]; ok {
		return repository.ErrConflict
	}
	m.users[u.Email] = u
	return nil
}

func (m *memStore) CreateTheater(ctx context.Context, name string) (int64, error) {
	m.nextID++
	m.theaters[m.nextID] = name
	return m.nextID, nil
}

func (m *memStore) TheaterExists(ctx context.Context, theaterID int64) (bool, error) {
	_, ok := m.theaters[theaterID]
	return ok, nil
}

func (m *memStore) CreateMovie(ctx context.Context, mv domain.Movie) (int64, error) {
	m.nextID++
	mv.ID = m.nextID
	m.movies[m.nextID] = mv
	return m.nextID, nil
}

func (m *memStore) CreateShow(ctx context.Context, s domain.Show) (int64, error) {
	m.nextID++
	s.ID = m.nextID
	m.shows[m.nextID] = s
	return m.nextID, nil
}

func (m *memStore) CreateShowSeats(ctx context.Context, showID int64, seats []domain.ShowSeat) error {
	sm := make(map[int]*memSeat, len(seats))
	for _, s := range seats {
		sm[s.SeatNo] = &memSeat{priceCents: s.PriceCents}
	}
	m.seats[showID] = sm
	return nil
}

// query.Store

func (m *memStore) GetShow(ctx context.Context, showID int64) (*domain.Show, error) {
	s, ok := m.shows[showID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) SeatMap(ctx context.Context, showID int64) ([]domain.ShowSeat, error) {
	var out []domain.ShowSeat
	for no, st := range m.seats[showID] {
		out = append(out, m.toShowSeat(showID, no, st))
	}
	return out, nil
}

func (m *memStore) CountsBySeatState(ctx context.Context, showID int64) (*domain.ShowCounts, error) {
	if _, ok := m.shows[showID]; !ok {
		return nil, repository.ErrNotFound
	}
	var c domain.ShowCounts
	for _, st := range m.seats[showID] {
		c.Total++
		if st.bookingID == nil {
			c.Free++
		} else {
			c.Booked++
		}
	}
	return &c, nil
}

func (m *memStore) BookingWithSeats(ctx context.Context, bookingID int64) (*domain.BookingWithSeats, error) {
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	seats, _ := m.SeatsOwnedBy(ctx, bookingID)
	return &domain.BookingWithSeats{Booking: b, Seats: seats}, nil
}

func (m *memStore) ListTheaters(ctx context.Context) ([]domain.Theater, error) {
	out := make([]domain.Theater, 0, len(m.theaters))
	for id, name := range m.theaters {
		out = append(out, domain.Theater{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListPendingUsers(ctx context.Context) ([]domain.PendingUser, error) {
	seen := make(map[string]bool)
	var out []domain.PendingUser
	for _, b := range m.bookings {
		if b.Status != domain.BookingPending || seen[b.Email] {
			continue
		}
		seen[b.Email] = true
		u := m.users[b.Email]
		out = append(out, domain.PendingUser{
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		})
	}
	return out, nil
}

func (m *memStore) ListBookingsForUser(ctx context.Context, email string) ([]domain.UserBookingInfo, error) {
	var out []domain.UserBookingInfo
	for id, b := range m.bookings {
		if b.Email != email {
			continue
		}
		var seatNos []int
		for _, sm := range m.seats {
			for no, st := range sm {
				if st.bookingID != nil && *st.bookingID == id {
					seatNos = append(seatNos, no)
				}
			}
		}
		out = append(out, domain.UserBookingInfo{
			BookingID: id,
			Status:    b.Status,
			SeatNos:   seatNos,
		})
	}
	return out, nil
}

func newTestRouter(t *testing.T, store *memStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 8, 1, 18, 30, 0, 0, time.UTC)
	svcs := &service.Services{
		Booking: booking.New(store, nil, nil, nil, nil, clock.NewFixed(now)),
		Catalog: catalog.New(store),
		Query:   query.New(store, nil, query.Config{}),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(svcs, nil, logger)
}

func seedCatalog(t *testing.T, store *memStore) int64 {
	t.Helper()
	store.users["rita@example.com"] = domain.User{
		Email: "rita@example.com", FirstName: "Rita", LastName: "Moss",
	}
	store.nextID++
	store.theaters[store.nextID] = "Grand Hall"
	store.nextID++
	showID := store.nextID
	store.shows[showID] = domain.Show{
		ID:        showID,
		MovieID:   1,
		TheaterID: 1,
		Starts:    time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC),
		Ends:      time.Date(2026, 9, 1, 22, 0, 0, 0, time.UTC),
	}
	store.seats[showID] = map[int]*memSeat{
		1: {priceCents: 1000},
		2: {priceCents: 1000},
		3: {priceCents: 1000},
		4: {priceCents: 2500},
	}
	return showID
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, newMemStore())
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBookEndpoint(t *testing.T) {
	store := newMemStore()
	showID := seedCatalog(t, store)
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{2, 1},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, showID, resp.ShowID)
	assert.Equal(t, "Pending", resp.Status)
	assert.Equal(t, []int{1, 2}, resp.SeatNos)
	assert.Equal(t, 2, resp.SeatCount)
}

func TestBookEndpoint_Conflict(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1, 2},
	})

	require.Equal(t, http.StatusConflict, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{1}, resp.SeatNos)
}

func TestBookEndpoint_StoreUnavailable(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	store.txErr = repository.ErrUnavailable

	w := doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1},
	})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "store unavailable", resp.Error)
}

func TestBookEndpoint_Validation(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	// missing seat list
	w := doJSON(t, r, http.MethodPost, "/shows/2/bookings", map[string]any{
		"email": "rita@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// bad status
	w = doJSON(t, r, http.MethodPost, "/shows/2/bookings", map[string]any{
		"email":    "rita@example.com",
		"seat_nos": []int{1},
		"status":   "Paid",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// unknown show
	w = doJSON(t, r, http.MethodPost, "/shows/99/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// unknown account
	w = doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "ghost@example.com",
		SeatNos: []int{1},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReassignEndpoint(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodPut, "/bookings/1/seats", ReassignRequest{SeatNos: []int{3}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// price mismatch keeps the old assignment
	w = doJSON(t, r, http.MethodPut, "/bookings/1/seats", ReassignRequest{SeatNos: []int{4}})
	assert.Equal(t, http.StatusConflict, w.Code)

	// unknown booking
	w = doJSON(t, r, http.MethodPut, "/bookings/404/seats", ReassignRequest{SeatNos: []int{2}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBookingEndpoint(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1, 3},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/bookings/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rita@example.com", resp.Email)
	assert.ElementsMatch(t, []int{1, 3}, resp.SeatNos)

	w = doJSON(t, r, http.MethodGet, "/bookings/404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowEndpoints(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodGet, "/shows/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	w = doJSON(t, r, http.MethodGet, "/shows/2/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail AvailabilityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avail))
	assert.Equal(t, int64(4), avail.Total)
	assert.Equal(t, int64(4), avail.Free)

	w = doJSON(t, r, http.MethodGet, "/shows/2/seats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var seats []SeatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seats))
	assert.Len(t, seats, 4)

	w = doJSON(t, r, http.MethodGet, "/shows/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/shows/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTheatersEndpoint(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodGet, "/theaters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	var theaters []TheaterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &theaters))
	require.Len(t, theaters, 1)
	assert.Equal(t, int64(1), theaters[0].TheaterID)
	assert.Equal(t, "Grand Hall", theaters[0].Name)
}

func TestAdminCatalogEndpoints(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/admin/users", CreateUserRequest{
		Email:     "tom@example.com",
		FirstName: "Tom",
		LastName:  "Hale",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// duplicate user
	w = doJSON(t, r, http.MethodPost, "/admin/users", CreateUserRequest{
		Email:     "tom@example.com",
		FirstName: "Tom",
		LastName:  "Hale",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/admin/theaters", CreateTheaterRequest{Name: "Grand Hall"})
	require.Equal(t, http.StatusCreated, w.Code)
	var theater CreateTheaterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &theater))

	w = doJSON(t, r, http.MethodPost, "/admin/shows", CreateShowingRequest{
		Title:     "Solaris",
		TheaterID: theater.TheaterID,
		StartsAt:  "2026-09-01T20:00:00Z",
		EndsAt:    "2026-09-01T22:00:00Z",
		Seats: []SeatPriceInput{
			{SeatNo: 1, PriceCents: 1000},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var showing CreateShowingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &showing))
	assert.NotZero(t, showing.ShowID)

	// unknown theater
	w = doJSON(t, r, http.MethodPost, "/admin/shows", CreateShowingRequest{
		Title:     "Solaris",
		TheaterID: 99,
		StartsAt:  "2026-09-01T20:00:00Z",
		EndsAt:    "2026-09-01T22:00:00Z",
		Seats:     []SeatPriceInput{{SeatNo: 1, PriceCents: 1000}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminSweepAndPurge(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/admin/reports/pending-users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []PendingUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "rita@example.com", pending[0].Email)

	w = doJSON(t, r, http.MethodPost, "/admin/bookings/release-pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sweep SweepResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sweep))
	assert.Equal(t, int64(1), sweep.Released)

	w = doJSON(t, r, http.MethodDelete, "/admin/bookings/cancelled", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var purge PurgeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &purge))
	assert.Equal(t, int64(1), purge.Purged)

	// the freed seat is bookable again
	w = doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUserBookingsEndpoint(t *testing.T) {
	store := newMemStore()
	seedCatalog(t, store)
	r := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/shows/2/bookings", BookRequest{
		Email:   "rita@example.com",
		SeatNos: []int{1, 2},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/users/rita@example.com/bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []UserBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.ElementsMatch(t, []int{1, 2}, rows[0].SeatNos)
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(t, newMemStore())
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
