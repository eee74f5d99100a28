package utils

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// SleepContext sleeps for given duration. If the context closes in the
// meantime, it returns immediately with a context.Canceled error.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return context.Canceled
	case <-t.C:
		return nil
	}
}

// IsCanceled checks if the context has been canceled.
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// TimeDiff returns the difference between two times, rounded to milliseconds.
func TimeDiff(t1, t0 time.Time) time.Duration {
	return t1.Sub(t0).Round(time.Millisecond)
}

// DisplayText makes an alert text safe for a single log line. Control
// characters are replaced by '.' and texts longer than max runes are cut
// with a trailing ellipsis. A max <= 0 disables truncation.
func DisplayText(s string, max int) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if max > 0 && n >= max {
			b.WriteString("…")
			break
		}
		if unicode.IsControl(r) {
			b.WriteByte('.')
		} else {
			b.WriteRune(r)
		}
		n++
	}
	return b.String()
}
