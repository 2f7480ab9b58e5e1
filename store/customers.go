package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/types"
)

// GetCustomer loads a customer by id, serving the cached record when live.
func (s *Store) GetCustomer(ctx context.Context, customerID string) (*database.Customer, error) {
	key := s.cache.Keys().UserInfo(customerID)

	var cached database.Customer
	if err := s.cache.GetFast(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	var customer database.Customer
	err := s.gw.DB().WithContext(ctx).First(&customer, "id = ?", customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	_ = s.cache.Set(ctx, key, customer, s.ttl)
	return &customer, nil
}

// GetCustomerByEmail loads a customer by email for the login path. Never
// cached: the record carries the password digest.
func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*database.Customer, error) {
	var customer database.Customer
	err := s.gw.DB().WithContext(ctx).First(&customer, "email = ?", strings.ToLower(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by email: %w", err)
	}
	return &customer, nil
}

// CreateCustomer inserts a new account.
func (s *Store) CreateCustomer(ctx context.Context, customer *database.Customer) error {
	customer.Email = strings.ToLower(customer.Email)
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	if err := s.gw.DB().WithContext(ctx).Create(customer).Error; err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// TouchLastLogin stamps the login instant and evicts the cached record.
func (s *Store) TouchLastLogin(ctx context.Context, customerID string) error {
	now := time.Now().UTC()
	err := s.gw.DB().WithContext(ctx).Model(&database.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]any{"last_login_at": now, "updated_at": now}).Error
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cache.Keys().UserInfo(customerID))
	return nil
}

// UpsertProfile writes the 1:1 medical profile and evicts the cached record.
func (s *Store) UpsertProfile(ctx context.Context, customerID string, profile types.Profile) error {
	conditions, err := json.Marshal(profile.MedicalConditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	row := database.CustomerProfile{
		CustomerID:        customerID,
		Sex:               string(profile.Sex),
		Diabetes:          profile.Diabetes,
		Hypertension:      profile.Hypertension,
		Pregnancy:         profile.Pregnancy,
		City:              profile.City,
		MedicalConditions: string(conditions),
		UpdatedAt:         time.Now().UTC(),
	}
	if profile.Age > 0 {
		age := profile.Age
		row.Age = &age
	}
	err = s.gw.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cache.Keys().UserInfo(customerID))
	return nil
}

// =============================================================================
// Refresh tokens
// =============================================================================

// SaveRefreshToken persists an issued refresh token.
func (s *Store) SaveRefreshToken(ctx context.Context, token *database.RefreshToken) error {
	if err := s.gw.DB().WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken loads a live (unrevoked, unexpired) refresh token.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*database.RefreshToken, error) {
	var rt database.RefreshToken
	err := s.gw.DB().WithContext(ctx).
		Where("token = ? AND revoked = ? AND expires_at > ?", token, false, time.Now().UTC()).
		First(&rt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token revoked.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	err := s.gw.DB().WithContext(ctx).Model(&database.RefreshToken{}).
		Where("token = ?", token).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// =============================================================================
// IP observations
// =============================================================================

// UpsertIPObservation bumps the visit counter for an address, binding the
// customer id on first authenticated sighting, and evicts the cached view.
func (s *Store) UpsertIPObservation(ctx context.Context, ip string, authenticated bool, customerID string) (*database.IPAddress, error) {
	now := time.Now().UTC()
	obs := database.IPAddress{
		IP:               ip,
		FirstSeen:        now,
		LastSeen:         now,
		VisitCount:       1,
		HasAuthenticated: authenticated,
	}
	if authenticated && customerID != "" {
		obs.CustomerID = &customerID
	}

	assignments := map[string]any{
		"last_seen":   now,
		"visit_count": gorm.Expr("ip_addresses.visit_count + 1"),
	}
	if authenticated {
		assignments["has_authenticated"] = true
		if customerID != "" {
			assignments["customer_id"] = customerID
		}
	}
	err := s.gw.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&obs).Error
	if err != nil {
		return nil, fmt.Errorf("upsert ip observation: %w", err)
	}

	var current database.IPAddress
	if err := s.gw.DB().WithContext(ctx).First(&current, "ip_address = ?", ip).Error; err != nil {
		return &obs, nil
	}
	_ = s.cache.Delete(ctx, s.cache.Keys().IPCheck(ip))
	return &current, nil
}

// GetIPObservation serves the cached reputation record under a fast budget.
func (s *Store) GetIPObservation(ctx context.Context, ip string) (*database.IPAddress, error) {
	key := s.cache.Keys().IPCheck(ip)

	var cached database.IPAddress
	if err := s.cache.GetFast(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	var obs database.IPAddress
	err := s.gw.DB().WithContext(ctx).First(&obs, "ip_address = ?", ip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ip observation: %w", err)
	}
	_ = s.cache.Set(ctx, key, obs, 5*time.Minute)
	return &obs, nil
}
