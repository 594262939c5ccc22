// Package queue defines message payloads exchanged over the message broker
// and the publisher that emits them after committed booking transactions.
package queue

// BookingCreatedEvent is published when a booking successfully claims its
// seat set. It carries enough for downstream consumers (mail, analytics) to
// act without querying the primary database.
type BookingCreatedEvent struct {
	EventID   string `json:"event_id"`
	BookingID int64  `json:"booking_id"`
	ShowID    int64  `json:"show_id"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	SeatNos   []int  `json:"seats"`
	CreatedAt string `json:"created_at"`
}

// BookingReassignedEvent is published when a booking's seat set is replaced.
type BookingReassignedEvent struct {
	EventID   string `json:"event_id"`
	BookingID int64  `json:"booking_id"`
	ShowID    int64  `json:"show_id"`
	SeatNos   []int  `json:"seats"`
}

// BookingsReleasedEvent is published after a stale-pending sweep.
type BookingsReleasedEvent struct {
	EventID    string  `json:"event_id"`
	BookingIDs []int64 `json:"booking_ids"`
	ReleasedAt string  `json:"released_at"`
}
