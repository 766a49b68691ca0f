package summarist

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-day key used by the ledger.
const DateLayout = "2006-01-02"

// LedgerStore holds quota ledger state. Several ledgers, in one process or
// many, may share a store: every usage change goes through Add, which must be
// atomic with respect to every other Add on the same store.
type LedgerStore interface {
	// Load returns the stored state. A store that was never written
	// returns a zero LedgerState and no error.
	Load(ctx context.Context) (LedgerState, error)

	// Add adds delta to providerID's usage for day and returns the
	// provider's usage afterwards. Usage stored under an earlier day is
	// discarded first. When delta > 0, limit > 0 and the result would
	// exceed limit, nothing is written and ok is false. A day older than
	// the stored one writes nothing; ok is then false for a positive delta.
	Add(ctx context.Context, day, providerID string, delta, limit int64) (used int64, ok bool, err error)
}

// LedgerState is the persisted part of the ledger: the day the counters
// belong to and per-provider successful call counts for that day.
type LedgerState struct {
	Date  string           `yaml:"date" json:"date"`
	Usage map[string]int64 `yaml:"usage" json:"usage"`
}

// Clone returns a deep copy.
func (s LedgerState) Clone() LedgerState {
	out := LedgerState{Date: s.Date, Usage: make(map[string]int64, len(s.Usage))}
	maps.Copy(out.Usage, s.Usage)
	return out
}

// Reservation is quota claimed for an in-flight call. The claim is already
// counted as usage in the store; Rollback gives it back.
type Reservation struct {
	ID         string
	ProviderID string
	Amount     int64
	Day        string
}

// QuotaLedger tracks per-provider daily usage against configured limits.
// Every method checks for a calendar-day rollover first. The ledger keeps a
// cached copy of the store's state; the store decides every claim, so two
// ledgers over one store can never both take the last unit of quota.
type QuotaLedger struct {
	mu      sync.Mutex
	limits  map[string]int64
	state   LedgerState
	pending map[string]Reservation
	store   LedgerStore
	now     func() time.Time
}

// LedgerOption configures a QuotaLedger.
type LedgerOption func(*QuotaLedger)

// WithClock overrides the clock used for day rollover.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *QuotaLedger) { l.now = now }
}

// NewQuotaLedger creates a ledger for the given providers and loads its
// state from store. A nil store keeps state in this ledger only.
func NewQuotaLedger(ctx context.Context, providers []ProviderConfig, store LedgerStore, opts ...LedgerOption) (*QuotaLedger, error) {
	if store == nil {
		store = newLocalStore()
	}

	l := &QuotaLedger{
		limits:  make(map[string]int64, len(providers)),
		pending: make(map[string]Reservation),
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, p := range providers {
		l.limits[p.ID] = p.DailyLimit
	}

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("summarist: load quota state: %w", err)
	}
	if state.Usage == nil {
		state.Usage = make(map[string]int64)
	}
	l.state = state
	l.rollover()

	return l, nil
}

// CheckQuota reports whether providerID can take cost more calls today,
// reading the store's current counts. Limits <= 0 mean unlimited. Providers
// unknown to the ledger are unlimited. If the store cannot be read the
// cached counts are used.
func (l *QuotaLedger) CheckQuota(ctx context.Context, providerID string, cost int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	l.refresh(ctx)
	return l.fits(providerID, cost)
}

// IncrementUsage adds cost to today's usage for providerID in the store.
// When the store fails the cached count is still raised.
func (l *QuotaLedger) IncrementUsage(ctx context.Context, providerID string, cost int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.add(ctx, l.state.Date, providerID, cost)
}

// Reserve claims cost units of providerID's quota for an in-flight call.
// The check and the claim are one atomic store operation. Returns
// ErrQuotaExceeded when the remaining quota is insufficient.
func (l *QuotaLedger) Reserve(ctx context.Context, providerID string, cost int64) (Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	if !l.fits(providerID, cost) {
		return Reservation{}, ErrQuotaExceeded
	}

	used, ok, err := l.store.Add(ctx, l.state.Date, providerID, cost, l.limits[providerID])
	if err != nil {
		return Reservation{}, fmt.Errorf("summarist: reserve quota: %w", err)
	}
	l.state.Usage[providerID] = used
	if !ok {
		return Reservation{}, ErrQuotaExceeded
	}

	res := Reservation{
		ID:         uuid.New().String(),
		ProviderID: providerID,
		Amount:     cost,
		Day:        l.state.Date,
	}
	l.pending[res.ID] = res
	return res, nil
}

// Commit keeps a reservation's claim as usage. A reservation made before a
// day rollover is counted again on the new day. Committing an unknown or
// already settled reservation is a no-op.
func (l *QuotaLedger) Commit(ctx context.Context, res Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.settle(res) {
		return nil
	}
	l.rollover()
	if res.Day == l.state.Date {
		return nil
	}
	return l.add(ctx, l.state.Date, res.ProviderID, res.Amount)
}

// Rollback gives a reservation's claim back. A claim from a day that has
// since rolled over is gone already. Rolling back an unknown or already
// settled reservation is a no-op.
func (l *QuotaLedger) Rollback(ctx context.Context, res Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.settle(res) {
		return nil
	}
	l.rollover()
	if res.Day != l.state.Date {
		return nil
	}
	return l.add(ctx, res.Day, res.ProviderID, -res.Amount)
}

// Usage returns today's usage for providerID as last seen in the store.
// Outstanding reservations are included.
func (l *QuotaLedger) Usage(providerID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.state.Usage[providerID]
}

// Remaining returns the calls left today for providerID. The second result
// is false when the provider is unlimited.
func (l *QuotaLedger) Remaining(providerID string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	limit := l.limits[providerID]
	if limit <= 0 {
		return 0, false
	}
	left := limit - l.state.Usage[providerID]
	if left < 0 {
		left = 0
	}
	return left, true
}

// Snapshot returns a copy of the cached state.
func (l *QuotaLedger) Snapshot() LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.state.Clone()
}

// fits must be called with the lock held.
func (l *QuotaLedger) fits(providerID string, cost int64) bool {
	limit := l.limits[providerID]
	if limit <= 0 {
		return true
	}
	return l.state.Usage[providerID]+cost <= limit
}

// add must be called with the lock held.
func (l *QuotaLedger) add(ctx context.Context, day, providerID string, delta int64) error {
	used, _, err := l.store.Add(ctx, day, providerID, delta, 0)
	if err != nil {
		l.state.Usage[providerID] = max(l.state.Usage[providerID]+delta, 0)
		return fmt.Errorf("summarist: save quota usage: %w", err)
	}
	l.state.Usage[providerID] = used
	return nil
}

// settle must be called with the lock held.
func (l *QuotaLedger) settle(res Reservation) bool {
	if _, ok := l.pending[res.ID]; !ok {
		return false
	}
	delete(l.pending, res.ID)
	return true
}

// refresh replaces the cached counts with the store's when the store is on
// the same day. Must be called with the lock held.
func (l *QuotaLedger) refresh(ctx context.Context) {
	state, err := l.store.Load(ctx)
	if err != nil || state.Date != l.state.Date {
		return
	}
	l.state = state.Clone()
}

// rollover clears cached usage if the calendar day changed. Must be called
// with the lock held. The store discards its own stale day on the next Add.
func (l *QuotaLedger) rollover() bool {
	today := l.now().Format(DateLayout)
	if l.state.Date == today {
		return false
	}
	l.state.Date = today
	l.state.Usage = make(map[string]int64)
	return true
}

// localStore backs a ledger created without a store.
type localStore struct {
	mu    sync.Mutex
	state LedgerState
}

func newLocalStore() *localStore {
	return &localStore{state: LedgerState{Usage: make(map[string]int64)}}
}

func (s *localStore) Load(context.Context) (LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

func (s *localStore) Add(_ context.Context, day, providerID string, delta, limit int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used, ok := ApplyAdd(&s.state, day, providerID, delta, limit)
	return used, ok, nil
}

// ApplyAdd applies LedgerStore.Add semantics to state in place. Stores that
// hold the whole state under one lock use it.
func ApplyAdd(state *LedgerState, day, providerID string, delta, limit int64) (int64, bool) {
	if state.Usage == nil {
		state.Usage = make(map[string]int64)
	}
	switch {
	case state.Date > day:
		return state.Usage[providerID], delta <= 0
	case state.Date < day:
		state.Date = day
		state.Usage = make(map[string]int64)
	}

	used := state.Usage[providerID]
	if delta > 0 && limit > 0 && used+delta > limit {
		return used, false
	}
	used = max(used+delta, 0)
	state.Usage[providerID] = used
	return used, true
}
