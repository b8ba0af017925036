package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/auth"
	"github.com/inkwellhq/inkwell/internal/content"
	"github.com/inkwellhq/inkwell/internal/feed"
	"github.com/inkwellhq/inkwell/internal/newsletter"
	"github.com/inkwellhq/inkwell/internal/settings"
	"github.com/inkwellhq/inkwell/internal/storage"
)

const userIDContextKey = "inkwell_user_id"

var (
	errMissingContentService    = errors.New("content service dependency required")
	errMissingNewsletterService = errors.New("newsletter service dependency required")
	errMissingSettingsService   = errors.New("settings service dependency required")
	errMissingTokenManager      = errors.New("token manager dependency required")
	errMissingAuthenticator     = errors.New("authenticator dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// SessionTokenManager issues and validates admin session tokens.
type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// CredentialVerifier checks a sign-in credential and returns the subject.
type CredentialVerifier interface {
	Authenticate(email, password string) (string, error)
}

// Dependencies wires the HTTP surface.
type Dependencies struct {
	Content       *content.Service
	Newsletter    *newsletter.Service
	Settings      *settings.Service
	Storage       *storage.DiskStore
	TokenManager  SessionTokenManager
	Authenticator CredentialVerifier
	Feed          *feed.Dispatcher
	PublicBaseURL string
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin router for the public site and the admin
// dashboard API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Content == nil {
		return nil, errMissingContentService
	}
	if deps.Newsletter == nil {
		return nil, errMissingNewsletterService
	}
	if deps.Settings == nil {
		return nil, errMissingSettingsService
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Authenticator == nil {
		return nil, errMissingAuthenticator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		content:       deps.Content,
		newsletter:    deps.Newsletter,
		settings:      deps.Settings,
		storage:       deps.Storage,
		tokens:        deps.TokenManager,
		authenticator: deps.Authenticator,
		feed:          deps.Feed,
		publicBaseURL: strings.TrimRight(deps.PublicBaseURL, "/"),
		logger:        logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/auth/login", handler.handleLogin)

	router.GET("/posts", handler.handleListPosts)
	router.GET("/posts/:slug", handler.handleGetPost)
	router.POST("/posts/:slug/views", handler.handleIncrementViews)
	router.GET("/posts/:slug/comments", handler.handleListComments)
	router.POST("/posts/:slug/comments", handler.handleCreateComment)
	router.POST("/newsletter/subscribe", handler.handleSubscribe)
	router.GET("/feed/rss", handler.handleRSS)
	router.GET("/stream", handler.handleStream)
	router.GET("/ws", handler.handleWebSocket)

	if deps.Storage != nil {
		router.Static("/storage", deps.Storage.Root())
	}

	admin := router.Group("/admin")
	admin.Use(handler.authorizeRequest)
	admin.GET("/posts", handler.handleAdminListPosts)
	admin.POST("/posts", handler.handleAdminCreatePost)
	admin.PUT("/posts/:id", handler.handleAdminUpdatePost)
	admin.GET("/comments", handler.handleAdminListComments)
	admin.DELETE("/comments/:id", handler.handleAdminDeleteComment)
	admin.GET("/settings/site", handler.handleGetSiteSettings)
	admin.PUT("/settings/site", handler.handlePutSiteSettings)
	admin.GET("/settings/user", handler.handleGetUserSettings)
	admin.PUT("/settings/user", handler.handlePutUserSettings)
	admin.GET("/settings/post-defaults", handler.handleGetPostDefaults)
	admin.PUT("/settings/post-defaults", handler.handlePutPostDefaults)
	admin.POST("/images", handler.handleUploadImage)
	admin.GET("/analytics", handler.handleAnalytics)

	return router, nil
}

type httpHandler struct {
	content       *content.Service
	newsletter    *newsletter.Service
	settings      *settings.Service
	storage       *storage.DiskStore
	tokens        SessionTokenManager
	authenticator CredentialVerifier
	feed          *feed.Dispatcher
	publicBaseURL string
	logger        *zap.Logger
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	subject, err := h.authenticator.Authenticate(request.Email, request.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Error("credential check failed", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), subject)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}
