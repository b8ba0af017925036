package database

import (
	"fmt"
	"strings"
	"testing"

	githubsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell/internal/content"
)

func newMigrationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(githubsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&content.Post{}, &migrationRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func seedPost(t *testing.T, db *gorm.DB, post content.Post) {
	t.Helper()
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
}

func TestApplyMigrationsNormalizesLegacyRows(t *testing.T) {
	db := newMigrationTestDB(t)
	seedPost(t, db, content.Post{
		PostID:   "p-1",
		Slug:     "  Mixed-Case-Slug ",
		Title:    "Legacy",
		Content:  strings.Repeat("word ", 450),
		Category: " Design ",
	})

	if err := applyMigrations(db, nil); err != nil {
		t.Fatalf("unexpected migration error: %v", err)
	}

	var migrated content.Post
	if err := db.Where("post_id = ?", "p-1").Take(&migrated).Error; err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if migrated.Slug != "mixed-case-slug" {
		t.Fatalf("expected normalized slug, got %q", migrated.Slug)
	}
	if migrated.Category != "Design" {
		t.Fatalf("expected trimmed category, got %q", migrated.Category)
	}
	if migrated.ReadTime != "3 min read" {
		t.Fatalf("expected backfilled read time, got %q", migrated.ReadTime)
	}
}

func TestApplyMigrationsRunsEachMigrationOnce(t *testing.T) {
	db := newMigrationTestDB(t)

	if err := applyMigrations(db, nil); err != nil {
		t.Fatalf("unexpected migration error: %v", err)
	}
	var firstRun []migrationRecord
	if err := db.Find(&firstRun).Error; err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if len(firstRun) != 3 {
		t.Fatalf("expected 3 applied migrations, got %d", len(firstRun))
	}

	// A row written after the first run must not be touched by a re-run.
	seedPost(t, db, content.Post{
		PostID:   "p-2",
		Slug:     "UPPER",
		Title:    "Late",
		Content:  "body",
		ReadTime: "5 min read",
	})
	if err := applyMigrations(db, nil); err != nil {
		t.Fatalf("unexpected migration error: %v", err)
	}

	var later content.Post
	if err := db.Where("post_id = ?", "p-2").Take(&later).Error; err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if later.Slug != "UPPER" {
		t.Fatalf("a recorded migration must not re-run, slug became %q", later.Slug)
	}

	var secondRun []migrationRecord
	if err := db.Find(&secondRun).Error; err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if len(secondRun) != 3 {
		t.Fatalf("expected no additional migration records, got %d", len(secondRun))
	}
}
