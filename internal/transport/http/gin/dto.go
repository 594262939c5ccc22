package httpgin

import (
	"time"

	"github.com/avelis/cineseat/internal/domain"
)

type BookRequest struct {
	Email   string `json:"email" binding:"required,email"`
	SeatNos []int  `json:"seat_nos" binding:"required,min=1,dive,gt=0"`
	Status  string `json:"status"`
}

type ReassignRequest struct {
	SeatNos []int `json:"seat_nos" binding:"required,min=1,dive,gt=0"`
}

type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone"`
}

type CreateTheaterRequest struct {
	Name string `json:"name" binding:"required"`
}

type SeatPriceInput struct {
	SeatNo     int `json:"seat_no" binding:"required,gt=0"`
	PriceCents int `json:"price_cents" binding:"required,gt=0"`
}

type CreateShowingRequest struct {
	Title       string           `json:"title" binding:"required"`
	ReleaseDate string           `json:"release_date"`
	Country     string           `json:"country"`
	Description string           `json:"description"`
	DurationMin int              `json:"duration_min"`
	Language    string           `json:"language"`
	Genre       string           `json:"genre"`
	TheaterID   int64            `json:"theater_id" binding:"required"`
	StartsAt    string           `json:"starts_at" binding:"required"`
	EndsAt      string           `json:"ends_at" binding:"required"`
	Seats       []SeatPriceInput `json:"seats" binding:"required,min=1,dive"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	SeatNos []int  `json:"seat_nos,omitempty"`
}

type BookingResponse struct {
	BookingID int64  `json:"booking_id"`
	Status    string `json:"status"`
	Email     string `json:"email"`
	ShowID    int64  `json:"show_id"`
	SeatCount int    `json:"seat_count"`
	SeatNos   []int  `json:"seat_nos,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type ShowResponse struct {
	ShowID    int64  `json:"show_id"`
	MovieID   int64  `json:"movie_id"`
	TheaterID int64  `json:"theater_id"`
	StartsAt  string `json:"starts_at"`
	EndsAt    string `json:"ends_at"`
}

type SeatResponse struct {
	SeatNo     int    `json:"seat_no"`
	PriceCents int    `json:"price_cents"`
	BookingID  *int64 `json:"booking_id,omitempty"`
}

type AvailabilityResponse struct {
	Free   int64 `json:"free"`
	Booked int64 `json:"booked"`
	Total  int64 `json:"total"`
}

type CreateTheaterResponse struct {
	TheaterID int64 `json:"theater_id"`
}

type TheaterResponse struct {
	TheaterID int64  `json:"theater_id"`
	Name      string `json:"name"`
}

type CreateShowingResponse struct {
	MovieID int64 `json:"movie_id"`
	ShowID  int64 `json:"show_id"`
}

type SweepResponse struct {
	Released int64 `json:"released"`
}

type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

type PendingUserResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type UserBookingResponse struct {
	BookingID   int64  `json:"booking_id"`
	Status      string `json:"status"`
	MovieTitle  string `json:"movie_title"`
	StartsAt    string `json:"starts_at"`
	TheaterName string `json:"theater_name"`
	SeatNos     []int  `json:"seat_nos"`
}

func toBookingResponse(b domain.Booking, seatNos []int) BookingResponse {
	resp := BookingResponse{
		BookingID: b.ID,
		Status:    string(b.Status),
		Email:     b.Email,
		ShowID:    b.ShowID,
		SeatCount: b.SeatCount,
		SeatNos:   seatNos,
	}
	if !b.CreatedAt.IsZero() {
		resp.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toShowResponse(s domain.Show) ShowResponse {
	return ShowResponse{
		ShowID:    s.ID,
		MovieID:   s.MovieID,
		TheaterID: s.TheaterID,
		StartsAt:  s.Starts.UTC().Format(time.RFC3339),
		EndsAt:    s.Ends.UTC().Format(time.RFC3339),
	}
}

func toTheaterResponses(theaters []domain.Theater) []TheaterResponse {
	out := make([]TheaterResponse, 0, len(theaters))
	for _, t := range theaters {
		out = append(out, TheaterResponse{
			TheaterID: t.ID,
			Name:      t.Name,
		})
	}
	return out
}

func toSeatResponses(seats []domain.ShowSeat) []SeatResponse {
	out := make([]SeatResponse, 0, len(seats))
	for _, s := range seats {
		out = append(out, SeatResponse{
			SeatNo:     s.SeatNo,
			PriceCents: s.PriceCents,
			BookingID:  s.BookingID,
		})
	}
	return out
}

func seatNosOf(seats []domain.ShowSeat) []int {
	nos := make([]int, 0, len(seats))
	for _, s := range seats {
		nos = append(nos, s.SeatNo)
	}
	return nos
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
