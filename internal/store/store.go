// Package store keeps conversation state in redis: pending bookings,
// directory drafts, chat-to-customer links, booking locks, and the
// geocode cache.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"funktaxi/config"
	"funktaxi/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	pendingKeyPrefix  = "telegram:pending:"
	crmDraftKeyPrefix = "telegram:pending:crm:"
	customerKeyPrefix = "telegram:customer:"
	lockKeyPrefix     = "telegram:lock:"
	geocodeKeyPrefix  = "geocode:"
)

// Store wraps redis for all conversation state
type Store struct {
	client     *redis.Client
	pendingTTL time.Duration
	lockTTL    time.Duration
	logger     *zap.Logger
}

// NewClient creates the redis client from config
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// NewStore wires a store around an existing client
func NewStore(client *redis.Client, cfg *config.Config, logger *zap.Logger) *Store {
	return &Store{
		client:     client,
		pendingTTL: cfg.PendingTTL,
		lockTTL:    cfg.BookingLockTTL,
		logger:     logger,
	}
}

// Ping verifies the redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetPending loads a chat's conversation state. Expired state is
// reported so the caller can tell the user, then cleared.
func (s *Store) GetPending(ctx context.Context, chatID int64) (*domain.Pending, error) {
	raw, err := s.client.Get(ctx, pendingKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending: %w", err)
	}

	var p domain.Pending
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("Dropping unreadable pending state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		s.client.Del(ctx, pendingKey(chatID))
		return nil, nil
	}
	return &p, nil
}

// SetPending stores a chat's conversation state. CreatedAt is assigned
// on first write; the redis TTL is double the logical timeout so the
// age check in the handler fires first and can explain the expiry.
func (s *Store) SetPending(ctx context.Context, chatID int64, p *domain.Pending) error {
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UnixMilli()
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending: %w", err)
	}
	return s.client.Set(ctx, pendingKey(chatID), raw, 2*s.pendingTTL).Err()
}

// DeletePending clears a chat's conversation state
func (s *Store) DeletePending(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, pendingKey(chatID)).Err()
}

// IsPendingExpired applies the logical conversation timeout
func (s *Store) IsPendingExpired(p *domain.Pending) bool {
	if p == nil {
		return false
	}
	return p.Expired(s.pendingTTL, time.Now())
}

// GetCRMDraft loads a pending "save this customer?" offer
func (s *Store) GetCRMDraft(ctx context.Context, chatID int64) (*domain.CRMDraft, error) {
	raw, err := s.client.Get(ctx, crmDraftKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get crm draft: %w", err)
	}

	var d domain.CRMDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		s.client.Del(ctx, crmDraftKey(chatID))
		return nil, nil
	}
	return &d, nil
}

// SetCRMDraft stores a directory offer with the conversation TTL
func (s *Store) SetCRMDraft(ctx context.Context, chatID int64, d *domain.CRMDraft) error {
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().UnixMilli()
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal crm draft: %w", err)
	}
	return s.client.Set(ctx, crmDraftKey(chatID), raw, 2*s.pendingTTL).Err()
}

// DeleteCRMDraft clears a directory offer
func (s *Store) DeleteCRMDraft(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, crmDraftKey(chatID)).Err()
}

// GetCustomerLink returns the customer linked to a chat, if any
func (s *Store) GetCustomerLink(ctx context.Context, chatID int64) (*domain.CustomerLink, error) {
	raw, err := s.client.Get(ctx, customerKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer link: %w", err)
	}

	var link domain.CustomerLink
	if err := json.Unmarshal(raw, &link); err != nil {
		s.client.Del(ctx, customerKey(chatID))
		return nil, nil
	}
	return &link, nil
}

// SetCustomerLink links a chat to a customer. Links never expire.
func (s *Store) SetCustomerLink(ctx context.Context, chatID int64, link *domain.CustomerLink) error {
	if link.LinkedAt == 0 {
		link.LinkedAt = time.Now().UnixMilli()
	}
	raw, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("marshal customer link: %w", err)
	}
	return s.client.Set(ctx, customerKey(chatID), raw, 0).Err()
}

// DeleteCustomerLink unlinks a chat from its customer
func (s *Store) DeleteCustomerLink(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, customerKey(chatID)).Err()
}

// AcquireBookingLock claims a booking id for processing. Returns false
// when another update already holds it, which makes double-taps on the
// confirm button no-ops. The lock expires on its own.
func (s *Store) AcquireBookingLock(ctx context.Context, bookingID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+bookingID, 1, s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return ok, nil
}

// LookupGeocode reads a cached geocode result
func (s *Store) LookupGeocode(ctx context.Context, key string) (domain.Place, bool, error) {
	raw, err := s.client.Get(ctx, geocodeKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Place{}, false, nil
	}
	if err != nil {
		return domain.Place{}, false, fmt.Errorf("geocode cache get: %w", err)
	}

	var p domain.Place
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Place{}, false, nil
	}
	return p, true, nil
}

// SaveGeocode writes a geocode result. Addresses don't move, entries
// are kept indefinitely.
func (s *Store) SaveGeocode(ctx context.Context, key string, place domain.Place) error {
	raw, err := json.Marshal(place)
	if err != nil {
		return fmt.Errorf("marshal place: %w", err)
	}
	return s.client.SetNX(ctx, geocodeKeyPrefix+key, raw, 0).Err()
}

func pendingKey(chatID int64) string {
	return fmt.Sprintf("%s%d", pendingKeyPrefix, chatID)
}

func crmDraftKey(chatID int64) string {
	return fmt.Sprintf("%s%d", crmDraftKeyPrefix, chatID)
}

func customerKey(chatID int64) string {
	return fmt.Sprintf("%s%d", customerKeyPrefix, chatID)
}
