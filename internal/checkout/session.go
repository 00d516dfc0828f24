package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	redislib "github.com/redis/go-redis/v9"

	"github.com/isaacklow/supermart-backend/pkg/enums"
)

// ErrSessionNotFound means the token was never issued, expired, or was
// already consumed.
var ErrSessionNotFound = errors.New("checkout session not found")

// SessionLine freezes one cart line at the moment checkout began. The cart
// row IDs are kept so finalization deletes exactly these rows and nothing
// added afterwards.
type SessionLine struct {
	CartItemID uuid.UUID       `json:"cart_item_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// PaymentSession is the pending-checkout state stored in Redis under an
// opaque token. Nothing is written to the orders table until the gateway
// confirms payment.
type PaymentSession struct {
	Token       string              `json:"token"`
	UserID      uuid.UUID           `json:"user_id"`
	Method      enums.PaymentMethod `json:"method"`
	Currency    enums.Currency      `json:"currency"`
	BNPLMonths  *int                `json:"bnpl_months,omitempty"`
	Lines       []SessionLine       `json:"lines"`
	Total       decimal.Decimal     `json:"total"`
	ProviderRef string              `json:"provider_ref,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

type sessionRedis interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	CheckoutSessionKey(token string) string
}

// SessionStore persists payment sessions in Redis with a TTL, so abandoned
// checkouts vanish on their own.
type SessionStore struct {
	redis sessionRedis
	ttl   time.Duration
}

// NewSessionStore builds a session store with the configured TTL.
func NewSessionStore(redis sessionRedis, ttl time.Duration) (*SessionStore, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &SessionStore{redis: redis, ttl: ttl}, nil
}

// Save writes the session under its token with the full TTL.
func (s *SessionStore) Save(ctx context.Context, session *PaymentSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode checkout session: %w", err)
	}
	return s.redis.Set(ctx, s.redis.CheckoutSessionKey(session.Token), string(payload), s.ttl)
}

// Consume atomically reads and deletes the session, so a token can be
// redeemed at most once even under concurrent finalize calls.
func (s *SessionStore) Consume(ctx context.Context, token string) (*PaymentSession, error) {
	raw, err := s.redis.GetDel(ctx, s.redis.CheckoutSessionKey(token))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var session PaymentSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &session, nil
}
