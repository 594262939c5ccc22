package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

type User struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

type Movie struct {
	ID          int64
	Title       string
	ReleaseDate time.Time
	Country     string
	Description string
	DurationMin int
	Language    string
	Genre       string
}

type Theater struct {
	ID   int64
	Name string
}

type Show struct {
	ID        int64
	MovieID   int64
	TheaterID int64
	Starts    time.Time
	Ends      time.Time
}

// ShowSeat is one seat of a showing's seat map. BookingID is nil while the
// seat is free; it is mutated only through the booking store's conditional
// claim, never directly.
type ShowSeat struct {
	ShowID     int64
	SeatNo     int
	PriceCents int
	BookingID  *int64
}

func (s ShowSeat) Free() bool { return s.BookingID == nil }

// Booking holds a set of seats for one showing. SeatCount always equals the
// number of ShowSeat rows pointing at this booking; a Cancelled booking owns
// zero seats.
type Booking struct {
	ID        int64
	Status    BookingStatus
	Email     string
	ShowID    int64
	SeatCount int
	CreatedAt time.Time
}

type BookingWithSeats struct {
	Booking Booking
	Seats   []ShowSeat
}

type ShowCounts struct {
	Free   int64
	Booked int64
	Total  int64
}

// PendingUser is the projection behind the "users with a pending booking"
// report.
type PendingUser struct {
	FirstName string
	LastName  string
	Email     string
}

// UserBookingInfo is one row of the per-user booking report: what is playing,
// when and where, and which seats the booking holds.
type UserBookingInfo struct {
	BookingID   int64
	Status      BookingStatus
	MovieTitle  string
	Starts      time.Time
	TheaterName string
	SeatNos     []int
}
