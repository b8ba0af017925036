package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("settings: database handle is required")

const defaultPostsPerPage = 10

// ServiceConfig describes the dependencies of the settings service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service reads and upserts the site, user, and post-default settings rows.
type Service struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, clock: clock}, nil
}

// Site returns the singleton site settings, with defaults when the row has
// never been written.
func (s *Service) Site(ctx context.Context) (SiteSettings, error) {
	var row SiteSettings
	err := s.db.WithContext(ctx).Where("id = ?", siteSettingsRowID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SiteSettings{ID: siteSettingsRowID, PostsPerPage: defaultPostsPerPage, CommentsEnabled: true}, nil
	}
	if err != nil {
		return SiteSettings{}, fmt.Errorf("settings.site.query_failed: %w", err)
	}
	return row, nil
}

// SaveSite upserts the singleton site settings row.
func (s *Service) SaveSite(ctx context.Context, updated SiteSettings) (SiteSettings, error) {
	updated.ID = siteSettingsRowID
	if updated.PostsPerPage <= 0 {
		updated.PostsPerPage = defaultPostsPerPage
	}
	updated.UpdatedAtSeconds = s.clock().UTC().Unix()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&updated).Error
	if err != nil {
		return SiteSettings{}, fmt.Errorf("settings.site.save_failed: %w", err)
	}
	return updated, nil
}

// User returns the settings row for the admin user, defaulted when absent.
func (s *Service) User(ctx context.Context, userID string) (UserSettings, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserSettings{}, errors.New("settings: user id is required")
	}
	var row UserSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserSettings{UserID: userID, EmailNotifications: true}, nil
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("settings.user.query_failed: %w", err)
	}
	return row, nil
}

// SaveUser upserts the settings row for the admin user.
func (s *Service) SaveUser(ctx context.Context, updated UserSettings) (UserSettings, error) {
	updated.UserID = strings.TrimSpace(updated.UserID)
	if updated.UserID == "" {
		return UserSettings{}, errors.New("settings: user id is required")
	}
	updated.UpdatedAtSeconds = s.clock().UTC().Unix()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&updated).Error
	if err != nil {
		return UserSettings{}, fmt.Errorf("settings.user.save_failed: %w", err)
	}
	return updated, nil
}

// Defaults returns the post-editor defaults for the admin user.
func (s *Service) Defaults(ctx context.Context, userID string) (PostDefaults, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return PostDefaults{}, errors.New("settings: user id is required")
	}
	var row PostDefaults
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PostDefaults{UserID: userID}, nil
	}
	if err != nil {
		return PostDefaults{}, fmt.Errorf("settings.defaults.query_failed: %w", err)
	}
	return row, nil
}

// SaveDefaults upserts the post-editor defaults for the admin user.
func (s *Service) SaveDefaults(ctx context.Context, updated PostDefaults) (PostDefaults, error) {
	updated.UserID = strings.TrimSpace(updated.UserID)
	if updated.UserID == "" {
		return PostDefaults{}, errors.New("settings: user id is required")
	}
	updated.UpdatedAtSeconds = s.clock().UTC().Unix()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&updated).Error
	if err != nil {
		return PostDefaults{}, fmt.Errorf("settings.defaults.save_failed: %w", err)
	}
	return updated, nil
}
