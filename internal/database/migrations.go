package database

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell/internal/content"
)

const (
	migrationNormalizeSlugs     = "2026-07-14_normalize_post_slugs"
	migrationBackfillReadTime   = "2026-07-14_backfill_read_time"
	migrationTrimPostCategories = "2026-08-02_trim_post_categories"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeSlugs, apply: normalizePostSlugs},
		{name: migrationBackfillReadTime, apply: backfillReadTime},
		{name: migrationTrimPostCategories, apply: trimPostCategories},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func normalizePostSlugs(db *gorm.DB) error {
	return db.Exec("UPDATE posts SET slug = lower(trim(slug)) WHERE slug <> lower(trim(slug));").Error
}

func backfillReadTime(db *gorm.DB) error {
	var posts []content.Post
	if err := db.Where("read_time = ''").Find(&posts).Error; err != nil {
		return err
	}
	for _, post := range posts {
		words := len(strings.Fields(post.Content))
		minutes := (words + 199) / 200
		if minutes < 1 {
			minutes = 1
		}
		readTime := content.FormatReadTime(minutes)
		if err := db.Model(&content.Post{}).
			Where("post_id = ?", post.PostID).
			Update("read_time", readTime).Error; err != nil {
			return err
		}
	}
	return nil
}

func trimPostCategories(db *gorm.DB) error {
	return db.Exec("UPDATE posts SET category = trim(category) WHERE category <> trim(category);").Error
}
