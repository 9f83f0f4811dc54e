package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	gomysql "github.com/go-sql-driver/mysql"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
)

// Server error numbers after which the same statement may succeed on a later attempt.
var transientErrorNumbers = map[uint16]struct{}{
	1040: {}, // too many connections
	1053: {}, // server shutdown in progress
	1158: {}, // network read error
	1159: {}, // network read timeout
	1160: {}, // network write error
	1161: {}, // network write timeout
	1203: {}, // user has exceeded max_user_connections
	1205: {}, // lock wait timeout
	1213: {}, // deadlock
	1226: {}, // user resource limit reached
	1290: {}, // server is read-only, typically during failover
	1927: {}, // connection was killed
	2002: {}, // can't connect through socket
	2003: {}, // can't connect to server
	2006: {}, // server has gone away
	2013: {}, // lost connection during query
	3024: {}, // max_execution_time exceeded
	4031: {}, // disconnected by the server after inactivity
}

func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		_, ok := transientErrorNumbers[mysqlErr.Number]
		return ok
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, gomysql.ErrInvalidConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func classify(err error) error {
	if IsTransient(err) {
		return ingest.Transient(err)
	}
	return ingest.Permanent(err)
}
