package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/arogyahq/arogya/internal/cache"
	"github.com/arogyahq/arogya/internal/database"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrForbidden is returned when an entity exists but belongs to another
// owner.
var ErrForbidden = errors.New("store: forbidden")

// DefaultHistoryLimit is the number of messages fetched for prompt history.
const DefaultHistoryLimit = 20

// DefaultListLimit bounds session list reads.
const DefaultListLimit = 50

// Store binds the relational gateway and the cache substrate.
type Store struct {
	gw     *database.Gateway
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a Store. ttl applies to every cached read view.
func New(gw *database.Gateway, cacheMgr *cache.Manager, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		gw:     gw,
		cache:  cacheMgr,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "store")),
	}
}

// Available reports whether the relational store is reachable without
// probing the network.
func (s *Store) Available() bool { return s.gw.IsConnected() }

// Cache exposes the cache manager for collaborators that share the key
// space (the IP-check endpoint, the auth surface).
func (s *Store) Cache() *cache.Manager { return s.cache }

// =============================================================================
// Sessions
// =============================================================================

// CreateSession inserts a new session for a customer.
func (s *Store) CreateSession(ctx context.Context, customerID, language string) (*database.ChatSession, error) {
	now := time.Now().UTC()
	session := &database.ChatSession{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Language:   language,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.gw.DB().WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.invalidateSessionViews(ctx, customerID, session.ID)
	return session, nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*database.ChatSession, error) {
	var session database.ChatSession
	err := s.gw.DB().WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// GetOwnedSession loads a session and verifies ownership. Admin callers pass
// admin=true and bypass the owner check.
func (s *Store) GetOwnedSession(ctx context.Context, sessionID, customerID string, admin bool) (*database.ChatSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !admin && session.CustomerID != customerID {
		return nil, ErrForbidden
	}
	return session, nil
}

// ListSessions returns the sessions of a customer, newest first, serving the
// cached view when live.
func (s *Store) ListSessions(ctx context.Context, customerID string, limit int) ([]database.ChatSession, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	key := s.cache.Keys().Sessions(customerID, limit)

	var sessions []database.ChatSession
	if err := s.cache.GetFast(ctx, key, &sessions); err == nil {
		return sessions, nil
	}
	err := s.gw.DB().WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	_ = s.cache.Set(ctx, key, sessions, s.ttl)
	return sessions, nil
}

// SessionWithMessages is the full session view: the session row plus every
// message in creation order.
type SessionWithMessages struct {
	Session  database.ChatSession  `json:"session"`
	Messages []database.ChatMessage `json:"messages"`
}

// GetSessionFull returns the cached session+messages view.
func (s *Store) GetSessionFull(ctx context.Context, sessionID, customerID string, admin bool) (*SessionWithMessages, error) {
	key := s.cache.Keys().SessionFull(sessionID)

	var cached SessionWithMessages
	if err := s.cache.GetFast(ctx, key, &cached); err == nil {
		if !admin && cached.Session.CustomerID != customerID {
			return nil, ErrForbidden
		}
		return &cached, nil
	}

	session, err := s.GetOwnedSession(ctx, sessionID, customerID, admin)
	if err != nil {
		return nil, err
	}
	messages, err := s.listMessagesUncached(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	full := &SessionWithMessages{Session: *session, Messages: messages}
	_ = s.cache.Set(ctx, key, full, s.ttl)
	return full, nil
}

// DeleteSession removes a session and cascades to its messages, then evicts
// every view the session participates in.
func (s *Store) DeleteSession(ctx context.Context, sessionID, customerID string, admin bool) error {
	session, err := s.GetOwnedSession(ctx, sessionID, customerID, admin)
	if err != nil {
		return err
	}
	err = s.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Delete(&database.ChatMessage{}, "session_id = ?", sessionID).Error; err != nil {
			return err
		}
		return tx.Delete(&database.ChatSession{}, "id = ?", sessionID).Error
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.invalidateSessionViews(ctx, session.CustomerID, sessionID)
	return nil
}

// =============================================================================
// Messages
// =============================================================================

// ListMessages returns up to limit messages of a session in non-decreasing
// creation order, serving the cached view when live.
func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]database.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	key := s.cache.Keys().SessionMessages(sessionID, limit)

	var messages []database.ChatMessage
	if err := s.cache.GetFast(ctx, key, &messages); err == nil {
		return messages, nil
	}
	messages, err := s.listMessagesUncached(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, messages, s.ttl)
	return messages, nil
}

// listMessagesUncached reads the last limit messages but returns them oldest
// first. limit <= 0 reads the whole session.
func (s *Store) listMessagesUncached(ctx context.Context, sessionID string, limit int) ([]database.ChatMessage, error) {
	var messages []database.ChatMessage
	q := s.gw.DB().WithContext(ctx).Where("session_id = ?", sessionID)
	if limit > 0 {
		// Take the newest N, then restore chronological order.
		q = q.Order("created_at DESC").Limit(limit)
	} else {
		q = q.Order("created_at ASC")
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if limit > 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

// SaveChatMessages appends the user and assistant records of one exchange in
// a single transaction and evicts the session's cached views. Messages are
// append-only; this is the only mutation path.
func (s *Store) SaveChatMessages(ctx context.Context, customerID string, userMsg, assistantMsg *database.ChatMessage) error {
	now := time.Now().UTC()
	if userMsg.ID == "" {
		userMsg.ID = uuid.NewString()
	}
	if assistantMsg.ID == "" {
		assistantMsg.ID = uuid.NewString()
	}
	userMsg.CreatedAt = now
	// The assistant record sorts strictly after the user record.
	assistantMsg.CreatedAt = now.Add(time.Millisecond)

	err := s.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		if err := tx.Create(assistantMsg).Error; err != nil {
			return err
		}
		return tx.Model(&database.ChatSession{}).
			Where("id = ?", userMsg.SessionID).
			Update("updated_at", now).Error
	})
	if err != nil {
		return fmt.Errorf("save chat messages: %w", err)
	}
	s.invalidateSessionViews(ctx, customerID, userMsg.SessionID)
	return nil
}

// AddFeedback records a rating on an assistant message.
func (s *Store) AddFeedback(ctx context.Context, messageID string, rating int, comment string) error {
	fb := &database.MessageFeedback{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.gw.DB().WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

// invalidateSessionViews applies the write-triggered eviction set for a
// session write: the owner's session lists, the session's message lists and
// the full view.
func (s *Store) invalidateSessionViews(ctx context.Context, customerID, sessionID string) {
	keys := s.cache.Keys()
	if _, err := s.cache.InvalidatePattern(ctx, keys.Pattern(cache.FamilySessions, customerID)); err != nil {
		s.logger.Warn("session list invalidation failed", zap.Error(err))
	}
	if _, err := s.cache.InvalidatePattern(ctx, keys.Pattern(cache.FamilySessionMessages, sessionID)); err != nil {
		s.logger.Warn("session message invalidation failed", zap.Error(err))
	}
	if err := s.cache.Delete(ctx, keys.SessionFull(sessionID)); err != nil {
		s.logger.Warn("session full-view invalidation failed", zap.Error(err))
	}
}
