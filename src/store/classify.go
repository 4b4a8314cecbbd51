package store

import (
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE classes and codes that indicate the server or the network
// hiccuped rather than the statement being wrong. Class 08 is
// connection exceptions, 53300 is too_many_connections, and the 57P0x
// codes cover admin shutdown, crash shutdown, and cannot_connect_now.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.SQLState()
		switch {
		case strings.HasPrefix(code, "08"):
			return true
		case code == "53300":
			return true
		case code == "57P01", code == "57P02", code == "57P03":
			return true
		}
		return false
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
