package reader

import (
	"time"

	"github.com/jpillora/backoff"
)

// RetryReader wraps a SubscriptionReader whose RefreshSource may fail
// transiently (a remote-backed source timing out, a network share briefly
// unavailable) rather than genuinely having no data for the date. It
// retries RefreshSource with an exponential backoff before giving up,
// the same backoff shape the teacher uses around its websocket
// reconnects in exchange/binance.go.
type RetryReader struct {
	SubscriptionReader
	attempts int
	backoff  *backoff.Backoff
}

// NewRetryReader decorates reader with up to attempts tries per
// RefreshSource call, backing off between Min and Max.
func NewRetryReader(r SubscriptionReader, attempts int, min, max time.Duration) *RetryReader {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryReader{
		SubscriptionReader: r,
		attempts:           attempts,
		backoff:            &backoff.Backoff{Min: min, Max: max},
	}
}

// RefreshSource retries the wrapped reader's RefreshSource up to the
// configured attempt count, sleeping an exponentially growing interval
// between tries. A true result resets the backoff for the next date.
func (r *RetryReader) RefreshSource(date time.Time) bool {
	for i := 0; i < r.attempts; i++ {
		if r.SubscriptionReader.RefreshSource(date) {
			r.backoff.Reset()
			return true
		}
		if i < r.attempts-1 {
			time.Sleep(r.backoff.Duration())
		}
	}
	return false
}

var _ SubscriptionReader = (*RetryReader)(nil)
