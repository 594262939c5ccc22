package postgres

import (
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avelis/cineseat/internal/repository"
)

// IsRetryable reports whether err is a serialization failure or deadlock,
// i.e. the transaction can be retried with the same arguments.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return errors.Is(err, repository.ErrSerialization)
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch {
		// unique_violation
		case pge.Code == "23505":
			return repository.ErrConflict
		// serialization_failure, deadlock_detected
		case pge.Code == "40001" || pge.Code == "40P01":
			return repository.ErrSerialization
		// class 08: connection exception; 57P0x: server shutting down
		case strings.HasPrefix(pge.Code, "08") || strings.HasPrefix(pge.Code, "57P"):
			return repository.ErrUnavailable
		}

		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return repository.ErrUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return repository.ErrUnavailable
	}

	return err
}
