package content

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidPostID indicates that a post identifier is empty or exceeds storage bounds.
	ErrInvalidPostID = errors.New("content: invalid post id")
	// ErrInvalidSlug indicates that a slug is empty, malformed, or exceeds storage bounds.
	ErrInvalidSlug = errors.New("content: invalid slug")
	// ErrInvalidTimestamp indicates that a unix timestamp value is not positive.
	ErrInvalidTimestamp = errors.New("content: invalid unix timestamp")
)

// PostID represents a validated post identifier.
type PostID string

// NewPostID validates raw input and returns a PostID.
func NewPostID(rawInput string) (PostID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPostID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidPostID, maxIdentifierLength)
	}
	return PostID(trimmed), nil
}

// String returns the underlying string identifier.
func (id PostID) String() string {
	return string(id)
}

// Slug represents a validated, normalized post slug used for routing.
type Slug string

// NewSlug lowercases and validates raw input and returns a Slug.
func NewSlug(rawInput string) (Slug, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawInput))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSlug)
	}
	if len(normalized) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidSlug, maxIdentifierLength)
	}
	for _, r := range normalized {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			continue
		}
		return "", fmt.Errorf("%w: character %q not allowed", ErrInvalidSlug, r)
	}
	return Slug(normalized), nil
}

// String returns the underlying slug value.
func (s Slug) String() string {
	return string(s)
}

// UnixTimestamp represents a validated unix timestamp in seconds.
type UnixTimestamp int64

// NewUnixTimestamp validates the value and returns a UnixTimestamp.
func NewUnixTimestamp(value int64) (UnixTimestamp, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTimestamp, value)
	}
	return UnixTimestamp(value), nil
}

// Int64 exposes the raw unix seconds value.
func (ts UnixTimestamp) Int64() int64 {
	return int64(ts)
}

// Post models a published or draft article.
type Post struct {
	PostID           string `gorm:"column:post_id;primaryKey;size:190;not null" json:"id"`
	Slug             string `gorm:"column:slug;size:190;not null;uniqueIndex:idx_posts_slug" json:"slug"`
	Title            string `gorm:"column:title;size:320;not null" json:"title"`
	Excerpt          string `gorm:"column:excerpt;type:text;not null;default:''" json:"excerpt"`
	Content          string `gorm:"column:content;type:text;not null" json:"content"`
	Author           string `gorm:"column:author;size:190;not null;default:''" json:"author"`
	Category         string `gorm:"column:category;size:190;not null;default:'';index:idx_posts_category" json:"category,omitempty"`
	ImageURL         string `gorm:"column:image_url;size:512;not null;default:''" json:"image,omitempty"`
	Featured         bool   `gorm:"column:featured;not null;default:false" json:"featured"`
	ReadTime         string `gorm:"column:read_time;size:32;not null;default:''" json:"read_time"`
	Views            int64  `gorm:"column:views;not null;default:0;index:idx_posts_views_created,priority:1" json:"views"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_posts_views_created,priority:2" json:"created_at_s"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// RecordID identifies the post inside a change-feed collection.
func (p Post) RecordID() string {
	return p.PostID
}

// Comment models a reader comment owned by exactly one post.
type Comment struct {
	CommentID        string `gorm:"column:comment_id;primaryKey;size:190;not null" json:"id"`
	PostID           string `gorm:"column:post_id;size:190;not null;index:idx_comments_post_time,priority:1" json:"post_id"`
	Name             string `gorm:"column:name;size:190;not null" json:"name"`
	Email            string `gorm:"column:email;size:320;not null;default:''" json:"email,omitempty"`
	Content          string `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_comments_post_time,priority:2" json:"created_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// RecordID identifies the comment inside a change-feed collection.
func (c Comment) RecordID() string {
	return c.CommentID
}
