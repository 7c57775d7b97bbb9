// Package ratelimit tracks the request and token budgets advertised by an
// OpenAI-style API through its x-ratelimit-* response headers.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/crawlserv/llmbatch/internal/logger"
)

// Header names advertised by the API. Lookup via http.Header is
// case-insensitive.
const (
	HeaderLimitRequests     = "x-ratelimit-limit-requests"
	HeaderLimitTokens       = "x-ratelimit-limit-tokens"
	HeaderRemainingRequests = "x-ratelimit-remaining-requests"
	HeaderRemainingTokens   = "x-ratelimit-remaining-tokens"
	HeaderResetRequests     = "x-ratelimit-reset-requests"
	HeaderResetTokens       = "x-ratelimit-reset-tokens"
)

// Unbounded is the budget assumed before the server has advertised one.
const Unbounded = math.MaxInt64

// sleepOnLimit is how long an admission attempt backs off before
// re-checking the budgets.
const sleepOnLimit = 100 * time.Millisecond

// Ledger is the process-wide rate-limit account. Until the first response
// arrives both budgets are unbounded; after that the server's headers are
// the source of truth. All fields are guarded by a single mutex.
type Ledger struct {
	mu sync.Mutex

	requestLimit int64
	tokenLimit   int64

	requestsRemaining int64
	tokensRemaining   int64

	requestResetAt time.Time // zero = unset
	tokenResetAt   time.Time

	// set once the corresponding deadline has passed and the remaining
	// budget was restored to the limit; cleared on each header ingest
	requestReset bool
	tokenReset   bool
}

// NewLedger returns a ledger with unbounded budgets.
func NewLedger() *Ledger {
	return &Ledger{
		requestLimit:      Unbounded,
		tokenLimit:        Unbounded,
		requestsRemaining: Unbounded,
		tokensRemaining:   Unbounded,
	}
}

// Acquire blocks until one request and estTokens tokens can be debited
// from the remaining budgets, or until ctx is cancelled. The debit is
// atomic: a caller that returns nil has taken exactly one request and
// estTokens tokens.
func (l *Ledger) Acquire(ctx context.Context, estTokens int64) error {
	for {
		l.mu.Lock()
		l.refillLocked(time.Now())
		if l.requestsRemaining > 0 && l.tokensRemaining > estTokens {
			l.requestsRemaining--
			l.tokensRemaining -= estTokens
			l.mu.Unlock()
			return nil
		}
		requests, tokens := l.requestsRemaining, l.tokensRemaining
		l.mu.Unlock()

		logger.Debug("rate limit reached, stalling",
			"requests_remaining", requests,
			"tokens_remaining", tokens,
			"tokens_needed", estTokens)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepOnLimit):
		}
	}
}

// refillLocked restores a budget to its limit once its reset deadline has
// passed. Each deadline triggers at most one refill.
func (l *Ledger) refillLocked(now time.Time) {
	if !l.requestReset && !l.requestResetAt.IsZero() && now.After(l.requestResetAt) {
		l.requestReset = true
		l.requestsRemaining = l.requestLimit
	}
	if !l.tokenReset && !l.tokenResetAt.IsZero() && now.After(l.tokenResetAt) {
		l.tokenReset = true
		l.tokensRemaining = l.tokenLimit
	}
}

// Ingest applies the rate-limit headers of a response to the ledger. The
// update is atomic: unless all six headers are present and well-formed it
// is skipped without touching the ledger.
func (l *Ledger) Ingest(h http.Header) {
	requestLimit, ok := headerInt(h, HeaderLimitRequests)
	if !ok {
		return
	}
	tokenLimit, ok := headerInt(h, HeaderLimitTokens)
	if !ok {
		return
	}
	requestsRemaining, ok := headerInt(h, HeaderRemainingRequests)
	if !ok {
		return
	}
	tokensRemaining, ok := headerInt(h, HeaderRemainingTokens)
	if !ok {
		return
	}
	requestResetMs, err := ParseResetDuration(h.Get(HeaderResetRequests))
	if err != nil {
		return
	}
	tokenResetMs, err := ParseResetDuration(h.Get(HeaderResetTokens))
	if err != nil {
		return
	}

	now := time.Now()

	l.mu.Lock()
	l.requestLimit = requestLimit
	l.tokenLimit = tokenLimit
	l.requestsRemaining = requestsRemaining
	l.tokensRemaining = tokensRemaining
	l.requestResetAt = now.Add(time.Duration(requestResetMs) * time.Millisecond)
	l.tokenResetAt = now.Add(time.Duration(tokenResetMs) * time.Millisecond)
	l.requestReset = false
	l.tokenReset = false
	l.mu.Unlock()

	logger.Debug("rate limits updated",
		"requests_remaining", requestsRemaining,
		"tokens_remaining", tokensRemaining,
		"request_reset_ms", requestResetMs,
		"token_reset_ms", tokenResetMs)
}

// Remaining reports the current request and token budgets.
func (l *Ledger) Remaining() (requests, tokens int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked(time.Now())
	return l.requestsRemaining, l.tokensRemaining
}

func headerInt(h http.Header, name string) (int64, bool) {
	v := h.Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
