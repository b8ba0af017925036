package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/content"
	"github.com/inkwellhq/inkwell/internal/settings"
	"github.com/inkwellhq/inkwell/internal/storage"
)

const coverBucket = "covers"

type postRequestPayload struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Content  string `json:"content"`
	Author   string `json:"author"`
	Category string `json:"category"`
	ImageURL string `json:"image"`
	Featured bool   `json:"featured"`
	ReadTime string `json:"read_time"`
}

func (p postRequestPayload) draft() (content.PostDraft, error) {
	slug, err := content.NewSlug(p.Slug)
	if err != nil {
		return content.PostDraft{}, err
	}
	return content.PostDraft{
		Slug:     slug,
		Title:    p.Title,
		Excerpt:  p.Excerpt,
		Content:  p.Content,
		Author:   p.Author,
		Category: p.Category,
		ImageURL: p.ImageURL,
		Featured: p.Featured,
		ReadTime: p.ReadTime,
	}, nil
}

func (h *httpHandler) handleAdminListPosts(c *gin.Context) {
	descriptor := content.FilterState{}.Descriptor()
	posts, err := h.content.ListPosts(c.Request.Context(), descriptor)
	if err != nil {
		h.logger.Error("failed to list posts for admin", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	payloads := make([]postPayload, 0, len(posts))
	for _, post := range posts {
		payloads = append(payloads, toPostPayload(post))
	}
	c.JSON(http.StatusOK, gin.H{"posts": payloads})
}

func (h *httpHandler) handleAdminCreatePost(c *gin.Context) {
	var request postRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	draft, err := request.draft()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slug"})
		return
	}
	post, err := h.content.CreatePost(c.Request.Context(), draft)
	if err != nil {
		if errors.Is(err, content.ErrSlugTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken"})
			return
		}
		h.logger.Error("failed to create post", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, toPostPayload(post))
}

func (h *httpHandler) handleAdminUpdatePost(c *gin.Context) {
	postID, err := content.NewPostID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_post_id"})
		return
	}
	var request postRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	draft, err := request.draft()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slug"})
		return
	}
	post, err := h.content.UpdatePost(c.Request.Context(), postID, draft)
	if err != nil {
		switch {
		case errors.Is(err, content.ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
		case errors.Is(err, content.ErrSlugTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken"})
		default:
			h.logger.Error("failed to update post", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		}
		return
	}
	c.JSON(http.StatusOK, toPostPayload(post))
}

func (h *httpHandler) handleAdminListComments(c *gin.Context) {
	comments, err := h.content.ListAllComments(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list comments for moderation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	payloads := make([]commentPayload, 0, len(comments))
	for _, comment := range comments {
		payloads = append(payloads, toCommentPayload(comment))
	}
	c.JSON(http.StatusOK, gin.H{"comments": payloads})
}

func (h *httpHandler) handleAdminDeleteComment(c *gin.Context) {
	if err := h.content.DeleteComment(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("failed to delete comment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type siteSettingsPayload struct {
	SiteTitle       string `json:"site_title"`
	Tagline         string `json:"tagline"`
	PostsPerPage    int    `json:"posts_per_page"`
	CommentsEnabled bool   `json:"comments_enabled"`
}

func (h *httpHandler) handleGetSiteSettings(c *gin.Context) {
	site, err := h.settings.Site(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load site settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, siteSettingsPayload{
		SiteTitle:       site.SiteTitle,
		Tagline:         site.Tagline,
		PostsPerPage:    site.PostsPerPage,
		CommentsEnabled: site.CommentsEnabled,
	})
}

func (h *httpHandler) handlePutSiteSettings(c *gin.Context) {
	var request siteSettingsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	saved, err := h.settings.SaveSite(c.Request.Context(), settings.SiteSettings{
		SiteTitle:       request.SiteTitle,
		Tagline:         request.Tagline,
		PostsPerPage:    request.PostsPerPage,
		CommentsEnabled: request.CommentsEnabled,
	})
	if err != nil {
		h.logger.Error("failed to save site settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	c.JSON(http.StatusOK, siteSettingsPayload{
		SiteTitle:       saved.SiteTitle,
		Tagline:         saved.Tagline,
		PostsPerPage:    saved.PostsPerPage,
		CommentsEnabled: saved.CommentsEnabled,
	})
}

type userSettingsPayload struct {
	DisplayName        string `json:"display_name"`
	EmailNotifications bool   `json:"email_notifications"`
}

func (h *httpHandler) handleGetUserSettings(c *gin.Context) {
	row, err := h.settings.User(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("failed to load user settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, userSettingsPayload{
		DisplayName:        row.DisplayName,
		EmailNotifications: row.EmailNotifications,
	})
}

func (h *httpHandler) handlePutUserSettings(c *gin.Context) {
	var request userSettingsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	saved, err := h.settings.SaveUser(c.Request.Context(), settings.UserSettings{
		UserID:             c.GetString(userIDContextKey),
		DisplayName:        request.DisplayName,
		EmailNotifications: request.EmailNotifications,
	})
	if err != nil {
		h.logger.Error("failed to save user settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	c.JSON(http.StatusOK, userSettingsPayload{
		DisplayName:        saved.DisplayName,
		EmailNotifications: saved.EmailNotifications,
	})
}

type postDefaultsPayload struct {
	Author   string `json:"author"`
	Category string `json:"category"`
}

func (h *httpHandler) handleGetPostDefaults(c *gin.Context) {
	row, err := h.settings.Defaults(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("failed to load post defaults", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, postDefaultsPayload{Author: row.Author, Category: row.Category})
}

func (h *httpHandler) handlePutPostDefaults(c *gin.Context) {
	var request postDefaultsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	saved, err := h.settings.SaveDefaults(c.Request.Context(), settings.PostDefaults{
		UserID:   c.GetString(userIDContextKey),
		Author:   request.Author,
		Category: request.Category,
	})
	if err != nil {
		h.logger.Error("failed to save post defaults", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	c.JSON(http.StatusOK, postDefaultsPayload{Author: saved.Author, Category: saved.Category})
}

func (h *httpHandler) handleUploadImage(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file"})
		return
	}
	defer file.Close()

	cover, encoded, err := storage.ProcessCover(file, fileHeader.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_image"})
		return
	}
	if err := h.storage.Upload(coverBucket, cover.Filename, encoded); err != nil {
		h.logger.Error("failed to store cover image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":    h.storage.PublicURL(coverBucket, cover.Filename),
		"width":  cover.Width,
		"height": cover.Height,
	})
}

func (h *httpHandler) handleAnalytics(c *gin.Context) {
	totals, err := h.content.AnalyticsTotals(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to aggregate analytics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	subscribers, err := h.newsletter.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to count subscribers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}

	limit := 5
	if raw := c.Query("top"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	top, err := h.content.TopPosts(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load top posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	topPayloads := make([]postPayload, 0, len(top))
	for _, post := range top {
		topPayloads = append(topPayloads, toPostPayload(post))
	}

	c.JSON(http.StatusOK, gin.H{
		"total_posts":    totals.Posts,
		"total_views":    totals.Views,
		"total_comments": totals.Comments,
		"subscribers":    subscribers,
		"top_posts":      topPayloads,
	})
}
