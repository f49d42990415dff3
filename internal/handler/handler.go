package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"

	"animelist_service/internal/auth"
	"animelist_service/internal/models"
	"animelist_service/internal/service"
)

type Handler struct {
	authService service.Auth
	listService service.Lists
	issuer      *auth.Issuer
	log         *slog.Logger
}

type errorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{
		Message:   errMessage,
		RequestID: requestIDFromContext(c),
	})
}

func NewHandler(authSrvc service.Auth, listSrvc service.Lists, issuer *auth.Issuer, lgr *slog.Logger) *Handler {
	return &Handler{
		authService: authSrvc,
		listService: listSrvc,
		issuer:      issuer,
		log:         lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	router.GET("/health", h.Health)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.RefreshTokens)

		authGroup.Use(AuthMiddleware(h.issuer))
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/profile", h.GetProfile)
	}

	list := router.Group("/list")
	list.Use(AuthMiddleware(h.issuer))
	{
		list.GET("", h.GetList)
		list.POST("/:anime_id", h.AddToList)
		list.GET("/:anime_id", h.GetListEntry)
		list.PATCH("/:anime_id", h.UpdateListEntry)
		list.DELETE("/:anime_id", h.RemoveFromList)
	}

	anime := router.Group("/anime")
	anime.Use(AuthMiddleware(h.issuer))
	{
		anime.POST("", h.CreateAnime)
		anime.GET("/:anime_id", h.GetAnime)
	}

	return router
}

// serviceErrorResponse maps service errors to client-facing statuses.
// Auth failures stay undifferentiated for the client; anything outside
// the taxonomy is a store failure and surfaces as 503.
func (h *Handler) serviceErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		newErrorResponse(c, http.StatusUnauthorized, "invalid login or password")
	case errors.Is(err, auth.ErrInvalidToken):
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, service.ErrSessionRevoked):
		newErrorResponse(c, http.StatusUnauthorized, "session revoked")
	case errors.Is(err, service.ErrNotFound):
		newErrorResponse(c, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrInvalidProgress):
		newErrorResponse(c, http.StatusBadRequest, "invalid progress")
	case errors.Is(err, service.ErrAlreadyExists):
		newErrorResponse(c, http.StatusConflict, "already exists")
	default:
		newErrorResponse(c, http.StatusServiceUnavailable, "service unavailable")
	}
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type credentialsRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "login and password are required")

		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		log.Error("failed to register user", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusCreated, user)
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "login and password are required")

		return
	}

	pair, err := h.authService.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		log.Error("failed to login", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusOK, pair)
}

// POST /auth/refresh
func (h *Handler) RefreshTokens(c *gin.Context) {
	const op = "handler.RefreshTokens"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("refresh token not given", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "refresh_token is required")

		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		log.Error("failed to refresh tokens", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusOK, pair)
}

// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	userID, ok := userIDFromContext(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	if err := h.authService.Logout(c.Request.Context(), userID); err != nil {
		log.Error("failed to logout", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// GET /auth/profile
func (h *Handler) GetProfile(c *gin.Context) {
	const op = "handler.GetProfile"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	userID, ok := userIDFromContext(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	user, err := h.authService.Profile(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to get profile", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

func animeIDFromParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("anime_id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// GET /list
func (h *Handler) GetList(c *gin.Context) {
	const op = "handler.GetList"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	userID, ok := userIDFromContext(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	entries, err := h.listService.Entries(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to get list entries", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	if entries == nil {
		entries = []models.ListEntry{}
	}

	c.JSON(http.StatusOK, entries)
}

// POST /list/:anime_id
func (h *Handler) AddToList(c *gin.Context) {
	const op = "handler.AddToList"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	userID, ok := userIDFromContext(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	animeID, ok := animeIDFromParam(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "invalid anime id")

		return
	}

	entry, err := h.listService.AddOrGet(c.Request.Context(), userID, animeID)
	if err != nil {
		log.Error("failed to add list entry", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusOK, entry)
}

// GET /list/:anime_id
func (h *Handler) GetListEntry(c *gin.Context) {
	const op = "handler.GetListEntry"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	userID, ok := userIDFromContext(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	animeID, ok := animeIDFromParam(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "invalid anime id")

		return
	}

	entry, err := h.listService.Get(c.Request.Context(), userID, animeID)
	if err != nil {
		log.Error("failed to get list entry", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusOK, entry)
}

type updateEntryRequest struct {
	Status          *models.WatchStatus `json:"status"`
	EpisodesWatched *int                `json:"episodes_watched"`
}

// PATCH /list/:anime_id
func (h *Handler) UpdateListEntry(c *gin.Context) {
	const op = "handler.UpdateListEntry"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	userID, ok := userIDFromContext(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	animeID, ok := animeIDFromParam(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "invalid anime id")

		return
	}

	var req updateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	entry, err := h.listService.UpdateProgress(c.Request.Context(), userID, animeID, req.Status, req.EpisodesWatched)
	if err != nil {
		log.Error("failed to update list entry", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusOK, entry)
}

// DELETE /list/:anime_id
func (h *Handler) RemoveFromList(c *gin.Context) {
	const op = "handler.RemoveFromList"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	userID, ok := userIDFromContext(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	animeID, ok := animeIDFromParam(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "invalid anime id")

		return
	}

	if err := h.listService.Remove(c.Request.Context(), userID, animeID); err != nil {
		log.Error("failed to remove list entry", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

type createAnimeRequest struct {
	Name          string `json:"name" binding:"required"`
	TotalEpisodes *int   `json:"total_episodes"`
}

// POST /anime
func (h *Handler) CreateAnime(c *gin.Context) {
	const op = "handler.CreateAnime"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	var req createAnimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "name is required")

		return
	}

	anime, err := h.listService.CreateAnime(c.Request.Context(), req.Name, req.TotalEpisodes)
	if err != nil {
		log.Error("failed to create anime", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusCreated, anime)
}

// GET /anime/:anime_id
func (h *Handler) GetAnime(c *gin.Context) {
	const op = "handler.GetAnime"

	log := h.log.With(slog.String("op", op), slog.String("request_id", requestIDFromContext(c)))

	animeID, ok := animeIDFromParam(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "invalid anime id")

		return
	}

	anime, err := h.listService.GetAnime(c.Request.Context(), animeID)
	if err != nil {
		log.Error("failed to get anime", slog.Any("error", err))

		h.serviceErrorResponse(c, err)

		return
	}

	c.JSON(http.StatusOK, anime)
}
