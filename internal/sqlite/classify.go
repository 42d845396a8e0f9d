package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mesh-intelligence/albumstore/pkg/types"
)

// SQLite result codes. Extended codes carry the primary code in the low byte.
const (
	sqliteBusy                 = 5
	sqliteLocked               = 6
	sqliteIOErr                = 10
	sqliteFull                 = 13
	sqliteCantOpen             = 14
	sqliteConstraint           = 19
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Classify wraps err in a *types.StoreError carrying its taxonomy kind.
// Errors that are already classified pass through unchanged.
func Classify(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var se *types.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &types.StoreError{Op: op, Collection: collection, Kind: kindOf(err), Err: err}
}

func kindOf(err error) types.ErrorKind {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return types.KindNotFound
	case errors.Is(err, sql.ErrConnDone):
		return types.KindNotReady
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.KindTransientIO
	}

	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		code := coder.Code()
		switch code {
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return types.KindDuplicateKey
		}
		switch code & 0xff {
		case sqliteConstraint:
			return types.KindConstraintViolation
		case sqliteBusy, sqliteLocked, sqliteIOErr, sqliteFull, sqliteCantOpen:
			return types.KindTransientIO
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return types.KindDuplicateKey
	case strings.Contains(msg, "constraint failed"):
		return types.KindConstraintViolation
	case strings.Contains(msg, "SQLITE_BUSY"), strings.Contains(msg, "database is locked"), strings.Contains(msg, "disk I/O error"):
		return types.KindTransientIO
	case strings.Contains(msg, "database is closed"):
		return types.KindNotReady
	}
	return types.KindFatal
}

func isBusy(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		c := coder.Code() & 0xff
		return c == sqliteBusy || c == sqliteLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy re-runs op while SQLite reports the database busy or locked,
// with a short exponential backoff.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
