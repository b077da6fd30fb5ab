// Package redisstore stores the local checkout state in Redis as JSON records
// keyed by namespace.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/cart"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
)

// DefaultPaymentTTL bounds how long a payment session record survives
// after its last update.
const DefaultPaymentTTL = 7 * 24 * time.Hour

// Keys derives every record key of a namespace.
type Keys struct {
	Namespace string
}

func (k Keys) Cart() string    { return k.Namespace + ":cart" }
func (k Keys) Session() string { return k.Namespace + ":session" }

func (k Keys) Payment(token string) string {
	return fmt.Sprintf("%s:payment:%s", k.Namespace, token)
}

func (k Keys) PaymentsByOrder(orderID string) string {
	return fmt.Sprintf("%s:payment-order:%s", k.Namespace, orderID)
}

// Open connects to the server at url and verifies it answers.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Reset deletes every record of namespace.
func Reset(ctx context.Context, client *redis.Client, namespace string) error {
	var keys []string
	iter := client.Scan(ctx, 0, namespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "scan keys")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "delete keys")
	}
	return nil
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository with one key per namespace.
type CartRepository struct {
	client *redis.Client
	keys   Keys
}

func NewCartRepository(client *redis.Client, namespace string) *CartRepository {
	return &CartRepository{client: client, keys: Keys{Namespace: namespace}}
}

func (r *CartRepository) Load(ctx context.Context) ([]cart.Line, error) {
	var lines []cart.Line
	if err := getJSON(ctx, r.client, r.keys.Cart(), &lines); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load cart")
	}
	return lines, nil
}

func (r *CartRepository) Save(ctx context.Context, lines []cart.Line) error {
	if len(lines) == 0 {
		if err := r.client.Del(ctx, r.keys.Cart()).Err(); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	}
	if err := setJSON(ctx, r.client, r.keys.Cart(), lines, 0); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

var _ session.Repository = (*SessionRepository)(nil)

// SessionRepository implements session.Repository.
type SessionRepository struct {
	client *redis.Client
	keys   Keys
}

func NewSessionRepository(client *redis.Client, namespace string) *SessionRepository {
	return &SessionRepository{client: client, keys: Keys{Namespace: namespace}}
}

func (r *SessionRepository) Load(ctx context.Context) (session.Session, error) {
	var s session.Session
	if err := getJSON(ctx, r.client, r.keys.Session(), &s); err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "load session")
	}
	return s, nil
}

func (r *SessionRepository) Save(ctx context.Context, s session.Session) error {
	if err := setJSON(ctx, r.client, r.keys.Session(), s, 0); err != nil {
		return errors.Wrap(err, "save session")
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.keys.Session()).Err(); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository. Records are keyed by
// provider token; a sorted set per order, scored by update time, indexes
// them by order.
type PaymentRepository struct {
	client *redis.Client
	keys   Keys
	ttl    time.Duration
}

// NewPaymentRepository returns a PaymentRepository whose records expire
// ttl after their last update. A non-positive ttl selects DefaultPaymentTTL.
func NewPaymentRepository(client *redis.Client, namespace string, ttl time.Duration) *PaymentRepository {
	if ttl <= 0 {
		ttl = DefaultPaymentTTL
	}
	return &PaymentRepository{client: client, keys: Keys{Namespace: namespace}, ttl: ttl}
}

func (r *PaymentRepository) Save(ctx context.Context, s *payment.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal payment session")
	}

	index := r.keys.PaymentsByOrder(s.OrderID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.Payment(s.ProviderSessionToken), data, r.ttl)
		pipe.ZAdd(ctx, index, redis.Z{
			Score:  float64(s.UpdatedAt.UnixNano()),
			Member: s.ProviderSessionToken,
		})
		pipe.Expire(ctx, index, r.ttl)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "save payment session %q", s.ID)
	}
	return nil
}

func (r *PaymentRepository) FindByToken(ctx context.Context, token string) (*payment.Session, error) {
	var s payment.Session
	if err := getJSON(ctx, r.client, r.keys.Payment(token), &s); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrap(err, "find payment session")
	}
	return &s, nil
}

func (r *PaymentRepository) FindByOrder(ctx context.Context, orderID string) (*payment.Session, error) {
	tokens, err := r.client.ZRevRange(ctx, r.keys.PaymentsByOrder(orderID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "find payment sessions by order")
	}
	// Index members can outlive their record or point at a token that was
	// reused by another order.
	for _, token := range tokens {
		s, err := r.FindByToken(ctx, token)
		if errors.Is(err, payment.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.OrderID != orderID {
			continue
		}
		return s, nil
	}
	return nil, payment.ErrNotFound
}

// List returns every payment session of the namespace, most recently
// updated first.
func (r *PaymentRepository) List(ctx context.Context) ([]payment.Session, error) {
	var sessions []payment.Session
	iter := r.client.Scan(ctx, 0, r.keys.Payment("*"), 100).Iterator()
	for iter.Next(ctx) {
		var s payment.Session
		if err := getJSON(ctx, r.client, iter.Val(), &s); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, errors.Wrap(err, "list payment sessions")
		}
		sessions = append(sessions, s)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "scan payment sessions")
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func getJSON(ctx context.Context, client *redis.Client, key string, v any) error {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", key)
	}
	return nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return client.Set(ctx, key, data, ttl).Err()
}
