package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/avelis/cineseat/internal/domain"
	"github.com/avelis/cineseat/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	users    map[string]domain.User
	theaters map[int64]string
	movies   map[int64]domain.Movie
	shows    map[int64]domain.Show
	seats    map[int64][]domain.ShowSeat
	nextID   int64

	createShowErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]domain.User),
		theaters: make(map[int64]string),
		movies:   make(map[int64]domain.Movie),
		shows:    make(map[int64]domain.Show),
		seats:    make(map[int64][]domain.ShowSeat),
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	movies := make(map[int64]domain.Movie, len(f.movies))
	for k, v := range f.movies {
		movies[k] = v
	}
	shows := make(map[int64]domain.Show, len(f.shows))
	for k, v := range f.shows {
		shows[k] = v
	}
	seats := make(map[int64][]domain.ShowSeat, len(f.seats))
	for k, v := range f.seats {
		seats[k] = v
	}

	if err := fn(ctx); err != nil {
		f.movies, f.shows, f.seats = movies, shows, seats
		return err
	}
	return nil
}

func (f *fakeStore) CreateUser(ctx context.Context, u domain.User, password string) error {
	if _, ok := f.users[u.Email]; ok {
		return repository.ErrConflict
	}
	f.users[u.Email] = u
	return nil
}

func (f *fakeStore) CreateTheater(ctx context.Context, name string) (int64, error) {
	f.nextID++
	f.theaters[f.nextID] = name
	return f.nextID, nil
}

func (f *fakeStore) TheaterExists(ctx context.Context, theaterID int64) (bool, error) {
	_, ok := f.theaters[theaterID]
	return ok, nil
}

func (f *fakeStore) CreateMovie(ctx context.Context, m domain.Movie) (int64, error) {
	f.nextID++
	m.ID = f.nextID
	f.movies[f.nextID] = m
	return f.nextID, nil
}

func (f *fakeStore) CreateShow(ctx context.Context, s domain.Show) (int64, error) {
	if f.createShowErr != nil {
		return 0, f.createShowErr
	}
	f.nextID++
	s.ID = f.nextID
	f.shows[f.nextID] = s
	return f.nextID, nil
}

func (f *fakeStore) CreateShowSeats(ctx context.Context, showID int64, seats []domain.ShowSeat) error {
	f.seats[showID] = seats
	return nil
}

func validShowing(theaterID int64) AddShowingInput {
	starts := time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)
	return AddShowingInput{
		Movie:     domain.Movie{Title: "Solaris"},
		TheaterID: theaterID,
		Starts:    starts,
		Ends:      starts.Add(2 * time.Hour),
		Seats: []SeatPrice{
			{SeatNo: 1, PriceCents: 1000},
			{SeatNo: 2, PriceCents: 1000},
		},
	}
}

func TestCreateUser(t *testing.T) {
	store := newFakeStore()
	svc := New(store)

	u := domain.User{
		Email:     "rita@example.com",
		FirstName: "Rita",
		LastName:  "Moss",
		Phone:     "5551234567",
	}

	require.NoError(t, svc.CreateUser(context.Background(), u))
	assert.Contains(t, store.users, "rita@example.com")

	err := svc.CreateUser(context.Background(), u)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestCreateUser_Validation(t *testing.T) {
	svc := New(newFakeStore())

	tests := []struct {
		name  string
		user  domain.User
		field string
	}{
		{
			name:  "missing first name",
			user:  domain.User{Email: "a@b.c", LastName: "Moss"},
			field: "fname",
		},
		{
			name:  "missing last name",
			user:  domain.User{Email: "a@b.c", FirstName: "Rita"},
			field: "lname",
		},
		{
			name:  "missing email",
			user:  domain.User{FirstName: "Rita", LastName: "Moss"},
			field: "email",
		},
		{
			name:  "short phone",
			user:  domain.User{Email: "a@b.c", FirstName: "Rita", LastName: "Moss", Phone: "12345"},
			field: "phone",
		},
		{
			name:  "non-digit phone",
			user:  domain.User{Email: "a@b.c", FirstName: "Rita", LastName: "Moss", Phone: "55512345ab"},
			field: "phone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateUser(context.Background(), tt.user)
			var bad InvalidFieldError
			require.ErrorAs(t, err, &bad)
			assert.Equal(t, tt.field, bad.Field)
		})
	}
}

func TestCreateUser_PhoneOptional(t *testing.T) {
	svc := New(newFakeStore())
	err := svc.CreateUser(context.Background(), domain.User{
		Email:     "tom@example.com",
		FirstName: "Tom",
		LastName:  "Hale",
	})
	assert.NoError(t, err)
}

func TestCreateTheater(t *testing.T) {
	store := newFakeStore()
	svc := New(store)

	id, err := svc.CreateTheater(context.Background(), "Grand Hall")
	require.NoError(t, err)
	assert.Equal(t, "Grand Hall", store.theaters[id])

	_, err = svc.CreateTheater(context.Background(), "")
	var bad InvalidFieldError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "name", bad.Field)
}

func TestAddShowing(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	ctx := context.Background()

	theaterID, err := svc.CreateTheater(ctx, "Grand Hall")
	require.NoError(t, err)

	res, err := svc.AddShowing(ctx, validShowing(theaterID))
	require.NoError(t, err)
	assert.NotZero(t, res.MovieID)
	assert.NotZero(t, res.ShowID)

	show := store.shows[res.ShowID]
	assert.Equal(t, res.MovieID, show.MovieID)
	assert.Equal(t, theaterID, show.TheaterID)
	assert.Len(t, store.seats[res.ShowID], 2)
}

func TestAddShowing_TheaterNotFound(t *testing.T) {
	svc := New(newFakeStore())

	_, err := svc.AddShowing(context.Background(), validShowing(77))
	assert.ErrorIs(t, err, ErrTheaterNotFound)
}

func TestAddShowing_NoSeats(t *testing.T) {
	svc := New(newFakeStore())

	in := validShowing(1)
	in.Seats = nil
	_, err := svc.AddShowing(context.Background(), in)
	assert.ErrorIs(t, err, ErrNoSeats)
}

func TestAddShowing_EndsBeforeStarts(t *testing.T) {
	svc := New(newFakeStore())

	in := validShowing(1)
	in.Ends = in.Starts.Add(-time.Minute)
	_, err := svc.AddShowing(context.Background(), in)
	var bad InvalidFieldError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "ends_at", bad.Field)
}

func TestAddShowing_RollsBackMovie(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	ctx := context.Background()

	theaterID, err := svc.CreateTheater(ctx, "Grand Hall")
	require.NoError(t, err)

	store.createShowErr = context.DeadlineExceeded
	_, err = svc.AddShowing(ctx, validShowing(theaterID))
	require.Error(t, err)

	// the movie insert from the failed transaction is gone
	assert.Empty(t, store.movies)
	assert.Empty(t, store.shows)
}
