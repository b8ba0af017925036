package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/content"
	"github.com/inkwellhq/inkwell/internal/newsletter"
)

type postPayload struct {
	ID               string `json:"id"`
	Slug             string `json:"slug"`
	Title            string `json:"title"`
	Excerpt          string `json:"excerpt"`
	Content          string `json:"content"`
	Author           string `json:"author"`
	Category         string `json:"category,omitempty"`
	ImageURL         string `json:"image,omitempty"`
	Featured         bool   `json:"featured"`
	ReadTime         string `json:"read_time"`
	Views            int64  `json:"views"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

func toPostPayload(post content.Post) postPayload {
	return postPayload{
		ID:               post.PostID,
		Slug:             post.Slug,
		Title:            post.Title,
		Excerpt:          post.Excerpt,
		Content:          post.Content,
		Author:           post.Author,
		Category:         post.Category,
		ImageURL:         post.ImageURL,
		Featured:         post.Featured,
		ReadTime:         post.ReadTime,
		Views:            post.Views,
		CreatedAtSeconds: post.CreatedAtSeconds,
		UpdatedAtSeconds: post.UpdatedAtSeconds,
	}
}

type commentPayload struct {
	ID               string `json:"id"`
	PostID           string `json:"post_id"`
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	Content          string `json:"content"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

func toCommentPayload(comment content.Comment) commentPayload {
	return commentPayload{
		ID:               comment.CommentID,
		PostID:           comment.PostID,
		Name:             comment.Name,
		Email:            comment.Email,
		Content:          comment.Content,
		CreatedAtSeconds: comment.CreatedAtSeconds,
	}
}

func filterStateFromQuery(c *gin.Context) content.FilterState {
	state := content.FilterState{
		Category:   c.Query("category"),
		SearchTerm: c.Query("search"),
		ExcludeID:  c.Query("exclude_id"),
	}
	if isTruthy(c.Query("trending")) {
		state.OrderBy = content.OrderByViews
	}
	if isTruthy(c.Query("featured")) {
		state.OnlyFeatured = true
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			state.Limit = limit
		}
	}
	return state
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	descriptor := filterStateFromQuery(c).Descriptor()
	posts, err := h.content.ListPosts(c.Request.Context(), descriptor)
	if err != nil {
		h.logger.Error("failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	payloads := make([]postPayload, 0, len(posts))
	for _, post := range posts {
		payloads = append(payloads, toPostPayload(post))
	}
	c.JSON(http.StatusOK, gin.H{"posts": payloads})
}

func (h *httpHandler) lookupPost(c *gin.Context) (content.Post, bool) {
	slug, err := content.NewSlug(c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slug"})
		return content.Post{}, false
	}
	post, err := h.content.GetPostBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, content.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return content.Post{}, false
		}
		h.logger.Error("failed to load post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return content.Post{}, false
	}
	return post, true
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	post, ok := h.lookupPost(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toPostPayload(post))
}

func (h *httpHandler) handleIncrementViews(c *gin.Context) {
	slug, err := content.NewSlug(c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slug"})
		return
	}
	views, err := h.content.IncrementViews(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, content.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
			return
		}
		h.logger.Error("failed to increment views", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"views": views})
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	post, ok := h.lookupPost(c)
	if !ok {
		return
	}
	postID, err := content.NewPostID(post.PostID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	comments, err := h.content.ListComments(c.Request.Context(), postID)
	if err != nil {
		h.logger.Error("failed to list comments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	payloads := make([]commentPayload, 0, len(comments))
	for _, comment := range comments {
		payloads = append(payloads, toCommentPayload(comment))
	}
	c.JSON(http.StatusOK, gin.H{"comments": payloads})
}

type commentRequestPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Content string `json:"content"`
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	site, err := h.settings.Site(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load site settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings_unavailable"})
		return
	}
	if !site.CommentsEnabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "comments_disabled"})
		return
	}

	post, ok := h.lookupPost(c)
	if !ok {
		return
	}

	var request commentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	postID, err := content.NewPostID(post.PostID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert_failed"})
		return
	}
	comment, err := h.content.CreateComment(c.Request.Context(), content.CommentDraft{
		PostID:  postID,
		Name:    request.Name,
		Email:   request.Email,
		Content: request.Content,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_comment"})
		return
	}
	c.JSON(http.StatusCreated, toCommentPayload(comment))
}

type subscribeRequestPayload struct {
	Email string `json:"email"`
}

func (h *httpHandler) handleSubscribe(c *gin.Context) {
	var request subscribeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.newsletter.Subscribe(c.Request.Context(), request.Email)
	if err != nil {
		if errors.Is(err, newsletter.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, result)
			return
		}
		h.logger.Error("newsletter subscribe failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe_failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
