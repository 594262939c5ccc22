// Package service aggregates the application services behind a single
// constructor so the app wiring stays in one place.
package service

import (
	"github.com/avelis/cineseat/internal/clock"
	"github.com/avelis/cineseat/internal/queue"
	postgres "github.com/avelis/cineseat/internal/repository/postgres"
	redis "github.com/avelis/cineseat/internal/repository/redis"
	"github.com/avelis/cineseat/internal/service/booking"
	"github.com/avelis/cineseat/internal/service/catalog"
	"github.com/avelis/cineseat/internal/service/query"
)

type Services struct {
	Booking *booking.Service
	Catalog *catalog.Service
	Query   *query.Service
}

type Config struct {
	Query query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.ShowsPubSub,
	limiter *redis.SlidingWindowLimiter,
	events *queue.Publisher,
	cfg Config,
) *Services {
	return &Services{
		Booking: booking.New(store.Bookings(), cache, pubsub, limiter, events, clock.NewSystem()),
		Catalog: catalog.New(store.Catalog()),
		Query:   query.New(store.Query(), cache, cfg.Query),
	}
}
