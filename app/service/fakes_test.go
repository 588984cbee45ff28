package service

import (
	"context"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-payments-router/app/cache"
	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/provider"
	"github.com/vibast-solutions/ms-go-payments-router/app/repository"
	"github.com/vibast-solutions/ms-go-payments-router/app/token"
	"github.com/vibast-solutions/ms-go-payments-router/config"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type serviceAccountRepo struct {
	accounts []*entity.Account
	saves    int
}

func (r *serviceAccountRepo) List(context.Context) ([]*entity.Account, error) {
	return cloneAccounts(r.accounts), nil
}

func (r *serviceAccountRepo) Save(_ context.Context, accounts []*entity.Account) error {
	r.accounts = cloneAccounts(accounts)
	r.saves++
	return nil
}

func (r *serviceAccountRepo) Migrate(context.Context) (bool, error) {
	return false, nil
}

type serviceOrderRepo struct {
	orders        map[uint64]*entity.Order
	notes         []*entity.OrderNote
	transitions   int
	cartEmptied   int
	stockRestored int
	// updateErrs fail the next UpdateStatus calls in order.
	updateErrs []error
	afterFind  func()
}

func newServiceOrderRepo(orders ...*entity.Order) *serviceOrderRepo {
	repo := &serviceOrderRepo{orders: map[uint64]*entity.Order{}}
	for _, order := range orders {
		if order.Meta == nil {
			order.Meta = map[string]string{}
		}
		repo.orders[order.ID] = order
	}
	return repo
}

func (r *serviceOrderRepo) FindByID(_ context.Context, id uint64) (*entity.Order, error) {
	item, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	copyItem.Meta = map[string]string{}
	for k, v := range item.Meta {
		copyItem.Meta[k] = v
	}
	if r.afterFind != nil {
		hook := r.afterFind
		r.afterFind = nil
		hook()
	}
	return &copyItem, nil
}

func (r *serviceOrderRepo) UpdateStatus(_ context.Context, id uint64, from []entity.OrderStatus, to entity.OrderStatus, now time.Time) (bool, error) {
	if len(r.updateErrs) > 0 {
		err := r.updateErrs[0]
		r.updateErrs = r.updateErrs[1:]
		return false, err
	}
	item, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if item.Status == status {
			if item.Status != to {
				r.transitions++
			}
			item.Status = to
			item.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (r *serviceOrderRepo) SetMeta(_ context.Context, orderID uint64, key, value string) error {
	if item, ok := r.orders[orderID]; ok {
		item.Meta[key] = value
	}
	return nil
}

func (r *serviceOrderRepo) AddNote(_ context.Context, note *entity.OrderNote) error {
	copyItem := *note
	r.notes = append(r.notes, &copyItem)
	return nil
}

func (r *serviceOrderRepo) HasNote(_ context.Context, orderID uint64, content string) (bool, error) {
	for _, note := range r.notes {
		if note.OrderID == orderID && note.Content == content {
			return true, nil
		}
	}
	return false, nil
}

func (r *serviceOrderRepo) countNotes(content string) int {
	count := 0
	for _, note := range r.notes {
		if note.Content == content {
			count++
		}
	}
	return count
}

func (r *serviceOrderRepo) MarkCartEmptied(_ context.Context, orderID uint64, now time.Time) (bool, error) {
	item := r.orders[orderID]
	if item == nil || item.CartEmptiedAt != nil {
		return false, nil
	}
	item.CartEmptiedAt = &now
	r.cartEmptied++
	return true, nil
}

func (r *serviceOrderRepo) MarkStockRestored(_ context.Context, orderID uint64, now time.Time) (bool, error) {
	item := r.orders[orderID]
	if item == nil || item.StockRestoredAt != nil {
		return false, nil
	}
	item.StockRestoredAt = &now
	r.stockRestored++
	return true, nil
}

func (r *serviceOrderRepo) ListPendingBefore(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	var out []*entity.Order
	for _, item := range r.orders {
		if item.Status == entity.OrderStatusPending && item.CreatedAt.Before(cutoff) && item.Meta[entity.OrderMetaOrigin] == entity.OrderMetaOriginGateway {
			copyItem := *item
			out = append(out, &copyItem)
		}
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

type serviceLinkRepo struct {
	links []*entity.PaymentLink
}

func (r *serviceLinkRepo) Create(_ context.Context, link *entity.PaymentLink) error {
	for _, item := range r.links {
		if item.OrderID == link.OrderID && item.UUID == link.UUID {
			return repository.ErrPaymentLinkExists
		}
	}
	copyItem := *link
	copyItem.ID = uint64(len(r.links) + 1)
	r.links = append(r.links, &copyItem)
	return nil
}

func (r *serviceLinkRepo) FindLatestByOrderID(_ context.Context, orderID uint64) (*entity.PaymentLink, error) {
	for i := len(r.links) - 1; i >= 0; i-- {
		if r.links[i].OrderID == orderID {
			copyItem := *r.links[i]
			return &copyItem, nil
		}
	}
	return nil, nil
}

type serviceGateway struct {
	mu sync.Mutex

	limited        map[string]bool
	limitErr       error
	paymentErr     error
	declineMessage string
	txnStatus      string
	txnErr         error
	syncStatuses   []provider.AccountStatus
	syncErr        error

	limitChecks   []string
	payments      []string
	cancelled     []string
	switchEmails  []provider.SwitchEmailInput
	syncedKeys    []provider.AccountKey
	statusBearers []string
}

func (g *serviceGateway) RequestPayment(_ context.Context, creds entity.Credentials, input *provider.PaymentInput) (*provider.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments = append(g.payments, creds.PublicKey)
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	if g.declineMessage != "" {
		return &provider.PaymentResult{Message: g.declineMessage}, nil
	}
	return &provider.PaymentResult{
		Success:     true,
		PaymentLink: "https://pay.example.com/" + creds.PublicKey,
		PayID:       "pay-" + creds.PublicKey,
	}, nil
}

func (g *serviceGateway) CheckDailyLimit(_ context.Context, creds entity.Credentials, _ *provider.PaymentInput) (*provider.LimitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limitChecks = append(g.limitChecks, creds.PublicKey)
	if g.limitErr != nil {
		return nil, g.limitErr
	}
	if g.limited[creds.PublicKey] {
		return &provider.LimitResult{Limited: true, Message: "limit"}, nil
	}
	return &provider.LimitResult{}, nil
}

func (g *serviceGateway) TransactionStatus(_ context.Context, bearer string, _ uint64, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusBearers = append(g.statusBearers, bearer)
	return g.txnStatus, g.txnErr
}

func (g *serviceGateway) CancelPaymentLink(_ context.Context, _ uint64, payID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, payID)
	return nil
}

func (g *serviceGateway) SyncAccountStatus(_ context.Context, keys []provider.AccountKey) ([]provider.AccountStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.syncedKeys = append([]provider.AccountKey(nil), keys...)
	return g.syncStatuses, g.syncErr
}

func (g *serviceGateway) SendAccountSwitchEmail(_ context.Context, input *provider.SwitchEmailInput) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.switchEmails = append(g.switchEmails, *input)
	return nil
}

type serviceLocks struct {
	held     map[string]bool
	released []string
}

func newServiceLocks() *serviceLocks {
	return &serviceLocks{held: map[string]bool{}}
}

func (l *serviceLocks) Acquire(_ context.Context, key string) bool {
	if l.held[key] {
		return false
	}
	l.held[key] = true
	return true
}

func (l *serviceLocks) Release(_ context.Context, key string) {
	delete(l.held, key)
	l.released = append(l.released, key)
}

type serviceLimiter struct {
	deny bool
}

func (l *serviceLimiter) Allow(context.Context, string) bool {
	return !l.deny
}

type serviceFixture struct {
	svc      *GatewayService
	accounts *serviceAccountRepo
	orders   *serviceOrderRepo
	links    *serviceLinkRepo
	gateway  *serviceGateway
	locks    *serviceLocks
	limiter  *serviceLimiter
	tokens   *token.Issuer
}

func newServiceFixture(accounts []*entity.Account, orders ...*entity.Order) *serviceFixture {
	return newServiceFixtureWithConfig(config.GatewayConfig{
		PublicBaseURL: "https://router.example.com",
		ShopBaseURL:   "https://shop.example.com",
	}, accounts, orders...)
}

func newServiceFixtureWithConfig(gatewayCfg config.GatewayConfig, accounts []*entity.Account, orders ...*entity.Order) *serviceFixture {
	store := cache.NewMemoryStoreWithClock(func() time.Time { return testNow })
	f := &serviceFixture{
		accounts: &serviceAccountRepo{accounts: accounts},
		orders:   newServiceOrderRepo(orders...),
		links:    &serviceLinkRepo{},
		gateway:  &serviceGateway{limited: map[string]bool{}},
		locks:    newServiceLocks(),
		limiter:  &serviceLimiter{},
		tokens:   token.NewIssuer("test-secret", time.Hour, store, func() time.Time { return testNow }),
	}
	f.svc = NewGatewayService(Dependencies{
		Accounts:   f.accounts,
		Orders:     f.orders,
		Links:      f.links,
		Gateway:    f.gateway,
		Locks:      f.locks,
		Limiter:    f.limiter,
		Tokens:     f.tokens,
		Cache:      store,
		GatewayCfg: gatewayCfg,
		JobsCfg:    config.JobsConfig{UnpaidTimeout: 30 * time.Minute},
		Now:        func() time.Time { return testNow },
	})
	return f
}

func testAccount(title string, priority int) *entity.Account {
	return &entity.Account{
		Title:    title,
		Priority: priority,
		Live: entity.Credentials{
			PublicKey: "pk_" + title,
			SecretKey: "sk_" + title,
			Status:    entity.AccountStatusActive,
		},
	}
}

func testOrder(id uint64, status entity.OrderStatus) *entity.Order {
	return &entity.Order{
		ID:          id,
		OrderKey:    "wc_order_key",
		OrderNumber: "1001",
		Status:      status,
		TotalCents:  1000,
		Billing:     entity.BillingDetails{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
		Meta:        map[string]string{},
		CreatedAt:   testNow.Add(-time.Hour),
	}
}

type checkoutRequest struct {
	orderID uint64
	key     string
	fields  map[string]string
	consent bool
}

func (r *checkoutRequest) GetOrderID() uint64           { return r.orderID }
func (r *checkoutRequest) GetOrderKey() string          { return r.key }
func (r *checkoutRequest) GetClientIP() string          { return "203.0.113.7" }
func (r *checkoutRequest) GetFields() map[string]string { return r.fields }
func (r *checkoutRequest) GetConsent() bool             { return r.consent }

type webhookCall struct {
	nonce   string
	orderID uint64
	status  string
	payID   string
	token   string
}

func (r *webhookCall) GetNonce() string       { return r.nonce }
func (r *webhookCall) GetOrderID() uint64     { return r.orderID }
func (r *webhookCall) GetOrderStatus() string { return r.status }
func (r *webhookCall) GetPayID() string       { return r.payID }
func (r *webhookCall) GetToken() string       { return r.token }

type signalCall struct {
	orderID uint64
	token   string
}

func (r *signalCall) GetOrderID() uint64 { return r.orderID }
func (r *signalCall) GetToken() string   { return r.token }
