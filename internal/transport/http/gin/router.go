package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avelis/cineseat/internal/domain"
	redisrepo "github.com/avelis/cineseat/internal/repository/redis"
	"github.com/avelis/cineseat/internal/service"
	"github.com/avelis/cineseat/internal/service/booking"
	"github.com/avelis/cineseat/internal/service/catalog"
	"github.com/avelis/cineseat/internal/service/query"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/theaters", handleListTheaters(svcs))
	r.GET("/shows/:id", handleGetShow(svcs))
	r.GET("/shows/:id/availability", handleGetAvailability(svcs))
	r.GET("/shows/:id/seats", handleGetSeatMap(svcs))

	r.POST("/shows/:id/bookings", handleBook(svcs, idem))

	r.GET("/bookings/:id", handleGetBooking(svcs))
	r.PUT("/bookings/:id/seats", handleReassign(svcs))

	r.GET("/users/:email/bookings", handleListUserBookings(svcs))

	// Admin-API
	// TODO: add admin middleware
	admin := r.Group("/admin")
	{
		admin.POST("/users", handleCreateUser(svcs))
		admin.POST("/theaters", handleCreateTheater(svcs))
		admin.POST("/shows", handleCreateShowing(svcs))
		admin.POST("/bookings/release-pending", handleReleasePending(svcs))
		admin.DELETE("/bookings/cancelled", handlePurgeCancelled(svcs))
		admin.GET("/reports/pending-users", handleListPendingUsers(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List theaters
// @Success  200  {array}  TheaterResponse
// @Router   /theaters [get]
func handleListTheaters(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		theaters, err := svcs.Query.ListTheaters(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, toTheaterResponses(theaters), "public, max-age=300", true)
	}
}

// @Summary  Get showing
// @Param    id  path  int  true  "Show ID"
// @Success  200  {object}  ShowResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /shows/{id} [get]
func handleGetShow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		s, err := svcs.Query.GetShow(c.Request.Context(), showID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, toShowResponse(*s), "public, max-age=60", true)
	}
}

// @Summary  Get availability counters
// @Param    id  path  int  true  "Show ID"
// @Success  200  {object}  AvailabilityResponse
// @Router   /shows/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		cnt, err := svcs.Query.Availability(c.Request.Context(), showID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, AvailabilityResponse{
			Free:   cnt.Free,
			Booked: cnt.Booked,
			Total:  cnt.Total,
		}, "public, max-age=15", true)
	}
}

// @Summary  Get seat map
// @Param    id  path  int  true  "Show ID"
// @Success  200  {array}   SeatResponse
// @Router   /shows/{id}/seats [get]
func handleGetSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seats, err := svcs.Query.SeatMap(c.Request.Context(), showID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, toSeatResponses(seats), "public, max-age=15", true)
	}
}

// @Summary  Book seats (idempotent)
// @Param    id  path  int  true  "Show ID"
// @Param    req body  BookRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} BookingResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats taken / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /shows/{id}/bookings [post]
func handleBook(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req BookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		status := domain.BookingStatus(req.Status)
		if req.Status != "" && !status.Valid() {
			badRequest(c, "invalid status")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(showID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		b, err := svcs.Booking.Book(c.Request.Context(), booking.BookInput{
			ShowID:  showID,
			SeatNos: req.SeatNos,
			Email:   req.Email,
			Status:  status,
		}, rlKey)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			var rl booking.RateLimitedError
			if errors.As(err, &rl) {
				c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rl.RetryAfter)))
				c.JSON(
					http.StatusTooManyRequests,
					ErrorResponse{Error: err.Error()},
				)
				return
			}
			respondErr(c, err)
			return
		}

		seatNos := append([]int(nil), req.SeatNos...)
		sort.Ints(seatNos)
		resp := toBookingResponse(*b, seatNos)

		if idemStorageKey != "" && idem != nil {
			payload, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(payload))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Reassign booking to a new seat set
// @Param    id  path  int  true  "Booking ID"
// @Param    req body  ReassignRequest true "payload"
// @Success  200 {object} BookingResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats taken / price mismatch"
// @Router   /bookings/{id}/seats [put]
func handleReassign(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ReassignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		b, err := svcs.Booking.Reassign(c.Request.Context(), bookingID, req.SeatNos)
		if err != nil {
			respondErr(c, err)
			return
		}
		seatNos := append([]int(nil), req.SeatNos...)
		sort.Ints(seatNos)
		c.JSON(http.StatusOK, toBookingResponse(*b, seatNos))
	}
}

// @Summary  Get booking with its seats
// @Param    id  path  int  true  "Booking ID"
// @Success  200 {object} BookingResponse
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		bws, err := svcs.Query.GetBooking(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingResponse(bws.Booking, seatNosOf(bws.Seats)))
	}
}

// @Summary  List a user's bookings
// @Param    email  path  string  true  "User email"
// @Success  200 {array} UserBookingResponse
// @Router   /users/{email}/bookings [get]
func handleListUserBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Param("email")
		rows, err := svcs.Query.ListBookingsForUser(c.Request.Context(), email)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]UserBookingResponse, 0, len(rows))
		for _, r := range rows {
			out = append(out, UserBookingResponse{
				BookingID:   r.BookingID,
				Status:      string(r.Status),
				MovieTitle:  r.MovieTitle,
				StartsAt:    r.Starts.UTC().Format(time.RFC3339),
				TheaterName: r.TheaterName,
				SeatNos:     r.SeatNos,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Create user
// @Param    req body  CreateUserRequest true "payload"
// @Success  201 {object} map[string]string
// @Failure  409 {object} ErrorResponse
// @Router   /admin/users [post]
func handleCreateUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		err := svcs.Catalog.CreateUser(c.Request.Context(), domain.User{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"email": req.Email})
	}
}

// @Summary  Create theater
// @Param    req body  CreateTheaterRequest true "payload"
// @Success  201 {object} CreateTheaterResponse
// @Router   /admin/theaters [post]
func handleCreateTheater(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTheaterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Catalog.CreateTheater(c.Request.Context(), req.Name)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateTheaterResponse{TheaterID: id})
	}
}

// @Summary  Create movie showing with its priced seat map
// @Param    req body  CreateShowingRequest true "payload"
// @Success  201 {object} CreateShowingResponse
// @Failure  404 {object} ErrorResponse "theater does not exist"
// @Router   /admin/shows [post]
func handleCreateShowing(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateShowingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		ends, err := parseRFC3339(req.EndsAt)
		if err != nil {
			badRequest(c, "invalid ends_at (RFC3339)")
			return
		}
		var release time.Time
		if req.ReleaseDate != "" {
			release, err = time.Parse("2006-01-02", req.ReleaseDate)
			if err != nil {
				badRequest(c, "invalid release_date (YYYY-MM-DD)")
				return
			}
		}
		seats := make([]catalog.SeatPrice, 0, len(req.Seats))
		for _, s := range req.Seats {
			seats = append(seats, catalog.SeatPrice{
				SeatNo:     s.SeatNo,
				PriceCents: s.PriceCents,
			})
		}
		res, err := svcs.Catalog.AddShowing(c.Request.Context(), catalog.AddShowingInput{
			Movie: domain.Movie{
				Title:       req.Title,
				ReleaseDate: release,
				Country:     req.Country,
				Description: req.Description,
				DurationMin: req.DurationMin,
				Language:    req.Language,
				Genre:       req.Genre,
			},
			TheaterID: req.TheaterID,
			Starts:    starts,
			Ends:      ends,
			Seats:     seats,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateShowingResponse{
			MovieID: res.MovieID,
			ShowID:  res.ShowID,
		})
	}
}

// @Summary  Cancel every pending booking and free its seats
// @Success  200 {object} SweepResponse
// @Router   /admin/bookings/release-pending [post]
func handleReleasePending(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svcs.Booking.ReleaseStalePending(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SweepResponse{Released: n})
	}
}

// @Summary  Delete cancelled bookings
// @Success  200 {object} PurgeResponse
// @Router   /admin/bookings/cancelled [delete]
func handlePurgeCancelled(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svcs.Booking.PurgeCancelled(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, PurgeResponse{Purged: n})
	}
}

// @Summary  List users holding a pending booking
// @Success  200 {array} PendingUserResponse
// @Router   /admin/reports/pending-users [get]
func handleListPendingUsers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := svcs.Query.ListPendingUsers(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]PendingUserResponse, 0, len(users))
		for _, u := range users {
			out = append(out, PendingUserResponse{
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Email:     u.Email,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var (
		dupSeat   booking.DuplicateSeatError
		missing   booking.SeatsNotFoundError
		taken     booking.SeatsBookedError
		mismatch  booking.PriceMismatchError
		badField  catalog.InvalidFieldError
	)
	switch {
	// booking service
	case errors.Is(err, booking.ErrEmptySeatSet),
		errors.Is(err, booking.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	case errors.As(err, &dupSeat):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: dupSeat.Error()})
		return
	case errors.Is(err, booking.ErrAccountNotFound),
		errors.Is(err, booking.ErrShowNotFound),
		errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	case errors.As(err, &missing):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "seats not found for this show",
			SeatNos: missing.SeatNos,
		})
		return
	case errors.As(err, &taken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "seats already booked",
			SeatNos: taken.SeatNos,
		})
		return
	case errors.As(err, &mismatch):
		c.JSON(http.StatusConflict, ErrorResponse{Error: mismatch.Error()})
		return
	case errors.Is(err, booking.ErrStoreConflict):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflicting booking in progress, retry"})
		return
	case errors.Is(err, booking.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable"})
		return
	// catalog service
	case errors.Is(err, catalog.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		return
	case errors.Is(err, catalog.ErrTheaterNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "theater not found"})
		return
	case errors.Is(err, catalog.ErrNoSeats):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "showing needs at least one seat"})
		return
	case errors.As(err, &badField):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: badField.Error()})
		return
	// query service
	case errors.Is(err, query.ErrShowNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "show not found"})
		return
	case errors.Is(err, query.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
