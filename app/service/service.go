package service

import (
	"context"
	"crypto/subtle"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/app/cache"
	"github.com/vibast-solutions/ms-go-payments-router/app/entity"
	"github.com/vibast-solutions/ms-go-payments-router/app/factory"
	"github.com/vibast-solutions/ms-go-payments-router/app/provider"
	"github.com/vibast-solutions/ms-go-payments-router/app/token"
	"github.com/vibast-solutions/ms-go-payments-router/config"
)

const (
	defaultBatchSize     = int32(100)
	accountsCacheTTL     = 30 * time.Second
	testOrderNote        = "This is a test order processed in sandbox mode."
	defaultLimitCacheTTL = 2 * time.Minute
)

type accountRepository interface {
	List(ctx context.Context) ([]*entity.Account, error)
	Save(ctx context.Context, accounts []*entity.Account) error
	Migrate(ctx context.Context) (bool, error)
}

type orderRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Order, error)
	UpdateStatus(ctx context.Context, id uint64, from []entity.OrderStatus, to entity.OrderStatus, now time.Time) (bool, error)
	SetMeta(ctx context.Context, orderID uint64, key, value string) error
	AddNote(ctx context.Context, note *entity.OrderNote) error
	HasNote(ctx context.Context, orderID uint64, content string) (bool, error)
	MarkCartEmptied(ctx context.Context, orderID uint64, now time.Time) (bool, error)
	MarkStockRestored(ctx context.Context, orderID uint64, now time.Time) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error)
}

type paymentLinkRepository interface {
	Create(ctx context.Context, link *entity.PaymentLink) error
	FindLatestByOrderID(ctx context.Context, orderID uint64) (*entity.PaymentLink, error)
}

type lockManager interface {
	Acquire(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
}

type rateLimiter interface {
	Allow(ctx context.Context, clientID string) bool
}

type tokenIssuer interface {
	Issue(orderID uint64, purpose token.Purpose) (string, error)
	Verify(raw string, orderID uint64, purpose token.Purpose) (*token.Claims, error)
	Consume(ctx context.Context, claims *token.Claims) error
	Release(ctx context.Context, claims *token.Claims) error
}

// Dependencies are the collaborators of GatewayService. Now defaults to
// time.Now.
type Dependencies struct {
	Accounts accountRepository
	Orders   orderRepository
	Links    paymentLinkRepository
	Gateway  provider.Gateway
	Locks    lockManager
	Limiter  rateLimiter
	Tokens   tokenIssuer
	Cache    cache.Store

	GatewayCfg config.GatewayConfig
	RoutingCfg config.RoutingConfig
	JobsCfg    config.JobsConfig

	Now func() time.Time
}

// GatewayService routes checkouts across the account pool and reconciles
// order state with the remote gateway.
type GatewayService struct {
	accountRepo accountRepository
	orderRepo   orderRepository
	linkRepo    paymentLinkRepository
	gateway     provider.Gateway
	locks       lockManager
	limiter     rateLimiter
	tokens      tokenIssuer
	cache       cache.Store

	gatewayCfg config.GatewayConfig
	routingCfg config.RoutingConfig
	jobsCfg    config.JobsConfig

	now    func() time.Time
	logger logrus.FieldLogger

	accountsMu       sync.RWMutex
	accountsCache    []*entity.Account
	accountsCachedAt time.Time
}

func NewGatewayService(deps Dependencies) *GatewayService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	gatewayCfg := deps.GatewayCfg
	if gatewayCfg.SuccessOrderStatus == "" || !entity.OrderStatus(gatewayCfg.SuccessOrderStatus).Valid() {
		gatewayCfg.SuccessOrderStatus = string(entity.OrderStatusProcessing)
	}
	routingCfg := deps.RoutingCfg
	if routingCfg.DailyLimitCacheTTL <= 0 {
		routingCfg.DailyLimitCacheTTL = defaultLimitCacheTTL
	}

	return &GatewayService{
		accountRepo: deps.Accounts,
		orderRepo:   deps.Orders,
		linkRepo:    deps.Links,
		gateway:     deps.Gateway,
		locks:       deps.Locks,
		limiter:     deps.Limiter,
		tokens:      deps.Tokens,
		cache:       deps.Cache,
		gatewayCfg:  gatewayCfg,
		routingCfg:  routingCfg,
		jobsCfg:     deps.JobsCfg,
		now:         now,
		logger:      factory.NewModuleLogger("gateway-service"),
	}
}

func (s *GatewayService) mode() entity.Mode {
	return entity.ModeFor(s.gatewayCfg.Sandbox)
}

func (s *GatewayService) successStatus() entity.OrderStatus {
	return entity.OrderStatus(s.gatewayCfg.SuccessOrderStatus)
}

func (s *GatewayService) batchSize() int32 {
	if s.jobsCfg.BatchSize > 0 {
		return s.jobsCfg.BatchSize
	}
	return defaultBatchSize
}

func (s *GatewayService) loadOrder(ctx context.Context, orderID uint64) (*entity.Order, error) {
	if orderID == 0 {
		return nil, ErrInvalidRequest
	}
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// addNote writes an order note unless one with the same content exists.
func (s *GatewayService) addNote(ctx context.Context, orderID uint64, content string, forCustomer bool) {
	exists, err := s.orderRepo.HasNote(ctx, orderID, content)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("Unable to check order notes")
		return
	}
	if exists {
		return
	}
	note := &entity.OrderNote{
		OrderID:     orderID,
		Content:     content,
		ForCustomer: forCustomer,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.orderRepo.AddNote(ctx, note); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("Unable to add order note")
	}
}

// OrderReceivedURL is where the customer lands after a finished payment.
func (s *GatewayService) OrderReceivedURL(order *entity.Order) string {
	return s.gatewayCfg.ShopBaseURL + "/checkout/order-received/" + strconv.FormatUint(order.ID, 10) + "/?key=" + order.OrderKey
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
