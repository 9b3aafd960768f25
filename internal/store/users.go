package store

import (
	"context"
	"strings"

	"github.com/fathima-sithara/teamchat-service/internal/models"
)

// SearchUsers matches email or display name case-insensitively, excluding
// the caller, with live presence annotated.
func (s *ChatStore) SearchUsers(ctx context.Context, query, excludeUserID string, limit int) ([]models.UserSearchResult, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"

	var results []models.UserSearchResult
	err := s.db.WithContext(ctx).
		Table("users u").
		Select("u.id, u.email, p.display_name, p.avatar_url, COALESCE(up.status, 'offline') AS presence").
		Joins("LEFT JOIN profiles p ON p.user_id = u.id").
		Joins("LEFT JOIN user_presence up ON up.user_id = u.id").
		Where("u.id <> ?", excludeUserID).
		Where("LOWER(u.email) LIKE ? OR LOWER(p.display_name) LIKE ?", pattern, pattern).
		Order("p.display_name, u.email").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// UserDisplayName resolves a name for system messages: display name, then
// email, then a fallback.
func (s *ChatStore) UserDisplayName(ctx context.Context, userID string) (string, error) {
	var row struct {
		Email       string
		DisplayName *string
	}
	err := s.db.WithContext(ctx).
		Table("users u").
		Select("u.email, p.display_name").
		Joins("LEFT JOIN profiles p ON p.user_id = u.id").
		Where("u.id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return "", err
	}
	if row.DisplayName != nil && *row.DisplayName != "" {
		return *row.DisplayName, nil
	}
	if row.Email != "" {
		return row.Email, nil
	}
	return "Unbekannt", nil
}
