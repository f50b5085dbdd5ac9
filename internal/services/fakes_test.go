package services

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"topup-service/internal/gateway"
	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

// fakeStore backs every repository interface with in-process maps. WithTx
// serializes callers with a mutex and restores a snapshot on error, which
// mirrors what serializable transactions plus row locks give the real
// implementation.
type fakeStore struct {
	mu sync.Mutex

	accounts map[string]models.Account
	wallets  map[string]models.Wallet // by wallet id
	entries  []models.LedgerEntry
	orders   map[string]models.Order
	attempts map[string]models.PaymentAttempt
	tiers    []models.BonusTier
	hooks    map[string]models.WebhookEvent // type+external id
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[string]models.Account{},
		wallets:  map[string]models.Wallet{},
		orders:   map[string]models.Order{},
		attempts: map[string]models.PaymentAttempt{},
		hooks:    map[string]models.WebhookEvent{},
	}
}

func (f *fakeStore) snapshot() *fakeStore {
	s := newFakeStore()
	for k, v := range f.accounts {
		s.accounts[k] = v
	}
	for k, v := range f.wallets {
		s.wallets[k] = v
	}
	for k, v := range f.orders {
		s.orders[k] = v
	}
	for k, v := range f.attempts {
		s.attempts[k] = v
	}
	for k, v := range f.hooks {
		s.hooks[k] = v
	}
	s.entries = append([]models.LedgerEntry(nil), f.entries...)
	s.tiers = append([]models.BonusTier(nil), f.tiers...)
	return s
}

func (f *fakeStore) restore(s *fakeStore) {
	f.accounts, f.wallets, f.orders, f.attempts, f.hooks = s.accounts, s.wallets, s.orders, s.attempts, s.hooks
	f.entries, f.tiers = s.entries, s.tiers
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(nil); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

// ---- accounts ----

type fakeAccounts struct{ s *fakeStore }

func (r *fakeAccounts) Create(ctx context.Context, username, email, hash, role string) (models.Account, error) {
	a := models.Account{ID: uuid.NewString(), Username: username, Email: email, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	r.s.accounts[a.ID] = a
	return a, nil
}

func (r *fakeAccounts) GetByID(ctx context.Context, id string) (models.Account, error) {
	if a, ok := r.s.accounts[id]; ok {
		return a, nil
	}
	return models.Account{}, repo.ErrNotFound
}

func (r *fakeAccounts) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	for _, a := range r.s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Account{}, repo.ErrNotFound
}

// ---- wallets ----

type fakeWallets struct{ s *fakeStore }

func (r *fakeWallets) GetByAccount(ctx context.Context, accountID string) (models.Wallet, error) {
	for _, w := range r.s.wallets {
		if w.AccountID == accountID {
			return w, nil
		}
	}
	return models.Wallet{}, repo.ErrNotFound
}

func (r *fakeWallets) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (models.Wallet, error) {
	if w, err := r.GetByAccount(ctx, accountID); err == nil {
		return w, nil
	}
	w := models.Wallet{ID: uuid.NewString(), AccountID: accountID, Balance: decimal.Zero, BonusBalance: decimal.Zero, UpdatedAt: time.Now()}
	r.s.wallets[w.ID] = w
	return w, nil
}

func (r *fakeWallets) Apply(ctx context.Context, tx pgx.Tx, walletID string, e models.LedgerEntry) (models.Wallet, error) {
	w, ok := r.s.wallets[walletID]
	if !ok {
		return models.Wallet{}, repo.ErrNotFound
	}
	delta := e.Amount
	if e.Direction == models.EntryDebit {
		delta = delta.Neg()
	}
	switch e.Kind {
	case models.LedgerBonus:
		next := w.BonusBalance.Add(delta)
		if next.IsNegative() {
			return models.Wallet{}, repo.ErrInsufficientFunds
		}
		w.BonusBalance = next
	default:
		next := w.Balance.Add(delta)
		if next.IsNegative() {
			return models.Wallet{}, repo.ErrInsufficientFunds
		}
		w.Balance = next
	}
	w.UpdatedAt = time.Now()
	r.s.wallets[walletID] = w

	e.ID = uuid.NewString()
	e.WalletID = walletID
	e.CreatedAt = time.Now()
	r.s.entries = append(r.s.entries, e)
	return w, nil
}

func (r *fakeWallets) ListEntries(ctx context.Context, walletID string, kind models.LedgerKind, limit, offset int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		e := r.s.entries[i]
		if e.WalletID == walletID && e.Kind == kind {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return []models.LedgerEntry{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- orders ----

type fakeOrders struct{ s *fakeStore }

func (r *fakeOrders) Create(ctx context.Context, tx pgx.Tx, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	r.s.orders[o.ID] = o
	return o, nil
}

func (r *fakeOrders) GetByID(ctx context.Context, id string) (models.Order, error) {
	if o, ok := r.s.orders[id]; ok {
		return o, nil
	}
	return models.Order{}, repo.ErrNotFound
}

func (r *fakeOrders) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (models.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrders) FindRecentPendingForUpdate(ctx context.Context, tx pgx.Tx, accountID string, amount decimal.Decimal, method string, since time.Time) (models.Order, bool, error) {
	for _, o := range r.s.orders {
		if o.AccountID == accountID && o.Status == models.OrderPending &&
			o.Amount.Equal(amount) && o.Method == method && o.CreatedAt.After(since) {
			return o, true, nil
		}
	}
	return models.Order{}, false, nil
}

func (r *fakeOrders) ListPendingByAccount(ctx context.Context, accountID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.s.orders {
		if o.AccountID == accountID && o.Status == models.OrderPending {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeOrders) SetStatus(ctx context.Context, tx pgx.Tx, id string, status models.OrderStatus) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	r.s.orders[id] = o
	return nil
}

func (r *fakeOrders) Complete(ctx context.Context, tx pgx.Tx, id string, bonus, total decimal.Decimal, tier string) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = models.OrderCompleted
	o.BonusAmount = bonus
	o.TotalAmount = total
	o.BonusTier = tier
	r.s.orders[id] = o
	return nil
}

func (r *fakeOrders) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, o := range r.s.orders {
		if o.Status == models.OrderPending && o.CreatedAt.Before(cutoff) {
			o.Status = models.OrderExpired
			r.s.orders[id] = o
			n++
		}
	}
	return n, nil
}

// ---- attempts ----

type fakeAttempts struct{ s *fakeStore }

func (r *fakeAttempts) Create(ctx context.Context, tx pgx.Tx, a models.PaymentAttempt) (models.PaymentAttempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	r.s.attempts[a.ID] = a
	return a, nil
}

func (r *fakeAttempts) GetByID(ctx context.Context, id string) (models.PaymentAttempt, error) {
	if a, ok := r.s.attempts[id]; ok {
		return a, nil
	}
	return models.PaymentAttempt{}, repo.ErrNotFound
}

func (r *fakeAttempts) GetByOrder(ctx context.Context, orderID string) (models.PaymentAttempt, bool, error) {
	for _, a := range r.s.attempts {
		if a.OrderID == orderID {
			return a, true, nil
		}
	}
	return models.PaymentAttempt{}, false, nil
}

func (r *fakeAttempts) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (models.PaymentAttempt, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeAttempts) GetByOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (models.PaymentAttempt, bool, error) {
	return r.GetByOrder(ctx, orderID)
}

func (r *fakeAttempts) SetSession(ctx context.Context, tx pgx.Tx, id, externalID, checkoutURL string) error {
	a, ok := r.s.attempts[id]
	if !ok {
		return repo.ErrNotFound
	}
	a.ExternalID = externalID
	a.CheckoutURL = checkoutURL
	r.s.attempts[id] = a
	return nil
}

func (r *fakeAttempts) MarkApproved(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[id]
	if !ok || a.Status != models.AttemptPending {
		return nil
	}
	a.Status = models.AttemptApproved
	r.s.attempts[id] = a
	return nil
}

func (r *fakeAttempts) MarkFailed(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[id]
	if !ok || a.Status != models.AttemptPending {
		return nil
	}
	a.Status = models.AttemptFailed
	r.s.attempts[id] = a
	return nil
}

func (r *fakeAttempts) MarkPaid(ctx context.Context, tx pgx.Tx, id string, processedAt time.Time) error {
	a, ok := r.s.attempts[id]
	if !ok {
		return repo.ErrNotFound
	}
	if a.Status == models.AttemptPaid {
		return nil
	}
	a.Status = models.AttemptPaid
	a.ProcessedAt = &processedAt
	r.s.attempts[id] = a
	return nil
}

func (r *fakeAttempts) ListStuckPending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error) {
	var out []models.PaymentAttempt
	for _, a := range r.s.attempts {
		if a.Status != models.AttemptPending || !a.CreatedAt.Before(cutoff) {
			continue
		}
		if o, ok := r.s.orders[a.OrderID]; !ok || o.Status != models.OrderPending {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- bonus tiers ----

type fakeTiers struct{ s *fakeStore }

func (r *fakeTiers) ListActive(ctx context.Context) ([]models.BonusTier, error) {
	var out []models.BonusTier
	for _, t := range r.s.tiers {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ordinal != out[j].Ordinal {
			return out[i].Ordinal < out[j].Ordinal
		}
		return out[i].MinAmount.LessThan(out[j].MinAmount)
	})
	return out, nil
}

func (r *fakeTiers) List(ctx context.Context) ([]models.BonusTier, error) {
	return append([]models.BonusTier(nil), r.s.tiers...), nil
}

func (r *fakeTiers) Create(ctx context.Context, t models.BonusTier) (models.BonusTier, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now()
	r.s.tiers = append(r.s.tiers, t)
	return t, nil
}

// ---- webhook events ----

type fakeHooks struct{ s *fakeStore }

func (r *fakeHooks) InsertIfNew(ctx context.Context, e models.WebhookEvent) (bool, error) {
	key := e.Type + ":" + e.ExternalID
	if _, seen := r.s.hooks[key]; seen {
		return false, nil
	}
	e.ID = uuid.NewString()
	e.ReceivedAt = time.Now()
	r.s.hooks[key] = e
	return true, nil
}

// ---- gateway ----

// fakeAdapter is a scriptable gateway. Status answers come from the byAttempt
// map (SearchOrder) and byExternal map (LookupPayment); lookupErr simulates
// an unreachable provider.
type fakeAdapter struct {
	mu         sync.Mutex
	name       string
	byAttempt  map[string]gateway.Status
	byExternal map[string]gateway.PaymentInfo
	lookupErr  error
	sessions   int
}

func newFakeAdapter(name string) *fakeAdapter {
	return &fakeAdapter{
		name:       name,
		byAttempt:  map[string]gateway.Status{},
		byExternal: map[string]gateway.PaymentInfo{},
	}
}

func (g *fakeAdapter) setAttemptStatus(attemptID string, st gateway.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byAttempt[attemptID] = st
}

func (g *fakeAdapter) Name() string { return g.name }

func (g *fakeAdapter) CreateCheckout(ctx context.Context, order models.Order, att models.PaymentAttempt) (gateway.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions++
	return gateway.CheckoutSession{
		SessionID:   "sess-" + att.ID,
		RedirectURL: "https://pay.example/" + att.ID,
	}, nil
}

func (g *fakeAdapter) ResumeCheckout(ctx context.Context, sessionID string) (string, error) {
	return "https://pay.example/resume/" + sessionID, nil
}

func (g *fakeAdapter) VerifySignature(r *http.Request, body []byte) bool { return true }

func (g *fakeAdapter) ParseEvent(r *http.Request, body []byte) (gateway.Event, error) {
	return gateway.Event{Type: "payment", ExternalID: "ext-1"}, nil
}

func (g *fakeAdapter) LookupPayment(ctx context.Context, externalID string) (gateway.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lookupErr != nil {
		return gateway.PaymentInfo{Status: gateway.StatusUnknown}, g.lookupErr
	}
	if info, ok := g.byExternal[externalID]; ok {
		return info, nil
	}
	return gateway.PaymentInfo{Status: gateway.StatusPending}, nil
}

func (g *fakeAdapter) LookupOrder(ctx context.Context, externalID string) (gateway.PaymentInfo, error) {
	return g.LookupPayment(ctx, externalID)
}

func (g *fakeAdapter) SearchOrder(ctx context.Context, attemptID string) (gateway.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lookupErr != nil {
		return gateway.StatusUnknown, g.lookupErr
	}
	if st, ok := g.byAttempt[attemptID]; ok {
		return st, nil
	}
	return gateway.StatusPending, nil
}
