package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/inkwellhq/inkwell/internal/feed"
)

// Collection names published on the change feed.
const (
	CollectionPosts    = "posts"
	CollectionComments = "comments"
)

const readTimeWordsPerMinute = 200

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrPostNotFound indicates the requested post does not exist.
	ErrPostNotFound = errors.New("content: post not found")
	// ErrSlugTaken indicates another post already owns the requested slug.
	ErrSlugTaken = errors.New("content: slug already in use")
	noOpLogger   = zap.NewNop()
)

// ServiceError carries a dotted operation code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "content.service.new"
	opListPosts       = "content.list_posts"
	opGetPost         = "content.get_post"
	opCreatePost      = "content.create_post"
	opUpdatePost      = "content.update_post"
	opIncrementViews  = "content.increment_views"
	opListComments    = "content.list_comments"
	opCreateComment   = "content.create_comment"
	opDeleteComment   = "content.delete_comment"
	opAnalyticsTotals = "content.analytics_totals"
	opAnalyticsTop    = "content.analytics_top_posts"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for new rows.
type IDProvider interface {
	NewID() (string, error)
}

// uuidProvider issues time-ordered UUIDv7 identifiers, so rows created later
// sort later in the primary key index.
type uuidProvider struct{}

// NewUUIDProvider returns the identifier source used by production wiring.
func NewUUIDProvider() IDProvider {
	return uuidProvider{}
}

func (uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("content: generate identifier: %w", err)
	}
	return value.String(), nil
}

// ServiceConfig describes the dependencies of the content service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Feed       *feed.Dispatcher
	Logger     *zap.Logger
}

// Service owns Post and Comment persistence and publishes every committed
// write to the change feed.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	feed       *feed.Dispatcher
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		feed:       cfg.Feed,
		logger:     logger,
	}, nil
}

// ListPosts executes the descriptor against the posts table.
func (s *Service) ListPosts(ctx context.Context, descriptor Descriptor) ([]Post, error) {
	query := s.db.WithContext(ctx).Model(&Post{})
	for _, where := range descriptor.WhereClauses() {
		query = query.Where(where.Expr, where.Args...)
	}
	query = query.Order(descriptor.OrderExpr())
	if descriptor.Limit() > 0 {
		query = query.Limit(descriptor.Limit())
	}

	var posts []Post
	if err := query.Find(&posts).Error; err != nil {
		s.logError(opListPosts, "query_failed", err)
		return nil, newServiceError(opListPosts, "query_failed", err)
	}
	return posts, nil
}

// GetPostBySlug returns the single post addressed by the slug.
func (s *Service) GetPostBySlug(ctx context.Context, slug Slug) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("slug = ?", slug.String()).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, newServiceError(opGetPost, "not_found", ErrPostNotFound)
	}
	if err != nil {
		s.logError(opGetPost, "query_failed", err, zap.String("slug", slug.String()))
		return Post{}, newServiceError(opGetPost, "query_failed", err)
	}
	return post, nil
}

// PostDraft carries the author-editable fields of a post.
type PostDraft struct {
	Slug     Slug
	Title    string
	Excerpt  string
	Content  string
	Author   string
	Category string
	ImageURL string
	Featured bool
	ReadTime string
}

// CreatePost inserts a new post. When the draft marks the post featured, any
// previously featured post is demoted in the same transaction so at most one
// featured post exists.
func (s *Service) CreatePost(ctx context.Context, draft PostDraft) (Post, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return Post{}, newServiceError(opCreatePost, "missing_title", errors.New("title is required"))
	}

	postID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreatePost, "id_generation_failed", err)
		return Post{}, newServiceError(opCreatePost, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	post := Post{
		PostID:           postID,
		Slug:             draft.Slug.String(),
		Title:            draft.Title,
		Excerpt:          draft.Excerpt,
		Content:          draft.Content,
		Author:           draft.Author,
		Category:         draft.Category,
		ImageURL:         draft.ImageURL,
		Featured:         draft.Featured,
		ReadTime:         readTimeOrEstimate(draft.ReadTime, draft.Content),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	var events []feed.Event
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Post
		err := tx.Where("slug = ?", post.Slug).Take(&existing).Error
		if err == nil {
			return newServiceError(opCreatePost, "slug_taken", ErrSlugTaken)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opCreatePost, "slug_check_failed", err)
		}

		if post.Featured {
			demoted, err := s.demoteFeatured(tx, post.PostID, now)
			if err != nil {
				return newServiceError(opCreatePost, "demote_featured_failed", err)
			}
			events = append(events, demoted...)
		}

		if err := tx.Create(&post).Error; err != nil {
			return newServiceError(opCreatePost, "insert_failed", err)
		}
		events = append(events, feed.Event{
			Collection: CollectionPosts,
			Kind:       feed.KindInsert,
			NewRecord:  post,
		})
		return nil
	})
	if txErr != nil {
		s.logError(opCreatePost, "transaction_failed", txErr, zap.String("slug", post.Slug))
		return Post{}, txErr
	}

	s.publish(events)
	return post, nil
}

// UpdatePost applies the draft to an existing post by id.
func (s *Service) UpdatePost(ctx context.Context, postID PostID, draft PostDraft) (Post, error) {
	var updated Post
	var events []feed.Event
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("post_id = ?", postID.String()).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opUpdatePost, "not_found", ErrPostNotFound)
		}
		if err != nil {
			return newServiceError(opUpdatePost, "select_failed", err)
		}

		if draft.Slug.String() != existing.Slug {
			var conflict Post
			err := tx.Where("slug = ? AND post_id <> ?", draft.Slug.String(), postID.String()).Take(&conflict).Error
			if err == nil {
				return newServiceError(opUpdatePost, "slug_taken", ErrSlugTaken)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return newServiceError(opUpdatePost, "slug_check_failed", err)
			}
		}

		now := s.clock().UTC().Unix()
		previous := existing
		existing.Slug = draft.Slug.String()
		existing.Title = draft.Title
		existing.Excerpt = draft.Excerpt
		existing.Content = draft.Content
		existing.Author = draft.Author
		existing.Category = draft.Category
		existing.ImageURL = draft.ImageURL
		existing.Featured = draft.Featured
		existing.ReadTime = readTimeOrEstimate(draft.ReadTime, draft.Content)
		existing.UpdatedAtSeconds = now

		if existing.Featured && !previous.Featured {
			demoted, err := s.demoteFeatured(tx, existing.PostID, now)
			if err != nil {
				return newServiceError(opUpdatePost, "demote_featured_failed", err)
			}
			events = append(events, demoted...)
		}

		if err := tx.Save(&existing).Error; err != nil {
			return newServiceError(opUpdatePost, "save_failed", err)
		}
		events = append(events, feed.Event{
			Collection: CollectionPosts,
			Kind:       feed.KindUpdate,
			NewRecord:  existing,
			OldRecord:  previous,
		})
		updated = existing
		return nil
	})
	if txErr != nil {
		s.logError(opUpdatePost, "transaction_failed", txErr, zap.String("post_id", postID.String()))
		return Post{}, txErr
	}

	s.publish(events)
	return updated, nil
}

// IncrementViews bumps the monotonic view counter of the post addressed by
// slug and returns the new count. Lost increments are acceptable; the caller
// does not retry.
func (s *Service) IncrementViews(ctx context.Context, slug Slug) (int64, error) {
	var updated Post
	var previous Post
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("slug = ?", slug.String()).
			Take(&post).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opIncrementViews, "not_found", ErrPostNotFound)
		}
		if err != nil {
			return newServiceError(opIncrementViews, "select_failed", err)
		}
		previous = post
		post.Views++
		if err := tx.Save(&post).Error; err != nil {
			return newServiceError(opIncrementViews, "save_failed", err)
		}
		updated = post
		return nil
	})
	if txErr != nil {
		s.logError(opIncrementViews, "transaction_failed", txErr, zap.String("slug", slug.String()))
		return 0, txErr
	}

	s.publish([]feed.Event{{
		Collection: CollectionPosts,
		Kind:       feed.KindUpdate,
		NewRecord:  updated,
		OldRecord:  previous,
	}})
	return updated.Views, nil
}

// ListComments returns the comments belonging to a post, oldest first.
func (s *Service) ListComments(ctx context.Context, postID PostID) ([]Comment, error) {
	var comments []Comment
	if err := s.db.WithContext(ctx).
		Where("post_id = ?", postID.String()).
		Order("created_at_s ASC").
		Find(&comments).Error; err != nil {
		s.logError(opListComments, "query_failed", err, zap.String("post_id", postID.String()))
		return nil, newServiceError(opListComments, "query_failed", err)
	}
	return comments, nil
}

// CommentDraft carries the reader-supplied fields of a comment.
type CommentDraft struct {
	PostID  PostID
	Name    string
	Email   string
	Content string
}

// CreateComment inserts a comment under an existing post.
func (s *Service) CreateComment(ctx context.Context, draft CommentDraft) (Comment, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return Comment{}, newServiceError(opCreateComment, "missing_name", errors.New("name is required"))
	}
	if strings.TrimSpace(draft.Content) == "" {
		return Comment{}, newServiceError(opCreateComment, "missing_content", errors.New("content is required"))
	}

	commentID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateComment, "id_generation_failed", err)
		return Comment{}, newServiceError(opCreateComment, "id_generation_failed", err)
	}

	comment := Comment{
		CommentID:        commentID,
		PostID:           draft.PostID.String(),
		Name:             draft.Name,
		Email:            draft.Email,
		Content:          draft.Content,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner Post
		err := tx.Where("post_id = ?", comment.PostID).Take(&owner).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opCreateComment, "post_not_found", ErrPostNotFound)
		}
		if err != nil {
			return newServiceError(opCreateComment, "post_check_failed", err)
		}
		if err := tx.Create(&comment).Error; err != nil {
			return newServiceError(opCreateComment, "insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opCreateComment, "transaction_failed", txErr, zap.String("post_id", comment.PostID))
		return Comment{}, txErr
	}

	s.publish([]feed.Event{{
		Collection: CollectionComments,
		Kind:       feed.KindInsert,
		NewRecord:  comment,
	}})
	return comment, nil
}

// ListAllComments returns every comment, newest first, for moderation.
func (s *Service) ListAllComments(ctx context.Context) ([]Comment, error) {
	var comments []Comment
	if err := s.db.WithContext(ctx).
		Order("created_at_s DESC").
		Find(&comments).Error; err != nil {
		s.logError(opListComments, "query_failed", err)
		return nil, newServiceError(opListComments, "query_failed", err)
	}
	return comments, nil
}

// DeleteComment removes a comment by id. Deleting an absent id is not an
// error, so a client retry after a network failure stays safe.
func (s *Service) DeleteComment(ctx context.Context, commentID string) error {
	commentID = strings.TrimSpace(commentID)
	if commentID == "" {
		return newServiceError(opDeleteComment, "missing_comment_id", errors.New("comment id is required"))
	}

	var removed Comment
	err := s.db.WithContext(ctx).Where("comment_id = ?", commentID).Take(&removed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		s.logError(opDeleteComment, "select_failed", err, zap.String("comment_id", commentID))
		return newServiceError(opDeleteComment, "select_failed", err)
	}

	if err := s.db.WithContext(ctx).Delete(&Comment{}, "comment_id = ?", commentID).Error; err != nil {
		s.logError(opDeleteComment, "delete_failed", err, zap.String("comment_id", commentID))
		return newServiceError(opDeleteComment, "delete_failed", err)
	}

	s.publish([]feed.Event{{
		Collection: CollectionComments,
		Kind:       feed.KindDelete,
		OldRecord:  removed,
	}})
	return nil
}

func (s *Service) demoteFeatured(tx *gorm.DB, keepPostID string, now int64) ([]feed.Event, error) {
	var featured []Post
	if err := tx.Where("featured = ? AND post_id <> ?", true, keepPostID).Find(&featured).Error; err != nil {
		return nil, err
	}
	events := make([]feed.Event, 0, len(featured))
	for _, post := range featured {
		previous := post
		post.Featured = false
		post.UpdatedAtSeconds = now
		if err := tx.Save(&post).Error; err != nil {
			return nil, err
		}
		events = append(events, feed.Event{
			Collection: CollectionPosts,
			Kind:       feed.KindUpdate,
			NewRecord:  post,
			OldRecord:  previous,
		})
	}
	return events, nil
}

func (s *Service) publish(events []feed.Event) {
	if s.feed == nil {
		return
	}
	now := s.clock().UTC()
	for _, event := range events {
		event.Timestamp = now
		s.feed.Publish(event)
	}
}

// FormatReadTime renders a minute count as the display string stored on posts.
func FormatReadTime(minutes int) string {
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

func readTimeOrEstimate(explicit, body string) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return trimmed
	}
	words := len(strings.Fields(body))
	return FormatReadTime((words + readTimeWordsPerMinute - 1) / readTimeWordsPerMinute)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("content service error", attrs...)
}
