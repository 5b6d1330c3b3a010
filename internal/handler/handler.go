package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipes_api/internal/auth"
	"recipes_api/internal/metrics"
	"recipes_api/internal/models"
	"recipes_api/internal/sanitize"
	"recipes_api/internal/service"
	"recipes_api/internal/storage"
)

const (
	msgUnauthorized   = "Unauthorized"
	msgRecipeNotFound = "Recipe not found"
	msgUserNotFound   = "User not found"
	msgInvalidBody    = "Invalid request body"
	msgGeneric        = "An error occured"
)

type Handler struct {
	serviceLayer service.Service
	log          *slog.Logger
	metrics      *metrics.Metrics
}

type errorResponse struct {
	Message string `json:"message"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func NewHandler(srvc service.Service, lgr *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		serviceLayer: srvc,
		log:          lgr,
		metrics:      m,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), h.RequestLogger(), h.Recovery())

	router.NoRoute(func(c *gin.Context) {
		newErrorResponse(c, http.StatusNotFound, "Not found")
	})

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.GET("/me", h.Me)

	router.GET("/recettes", h.ListRecipes)
	recipe := router.Group("/recette")
	{
		recipe.POST("", h.CreateRecipe)
		recipe.GET("/:id", h.GetRecipe)
		recipe.PATCH("/:id", h.PatchRecipe)
		recipe.PUT("/:id", h.ReplaceRecipe)
		recipe.DELETE("/:id", h.DeleteRecipe)
	}

	return router
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.logger(c, op)

	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, msgInvalidBody)

		return
	}

	if err := h.serviceLayer.Register(c.Request.Context(), req.Email, req.Password); err != nil {
		h.fail(c, log, err, msgGeneric)

		return
	}

	log.Info("user registered", slog.String("email", req.Email))

	c.JSON(http.StatusOK, gin.H{"message": "User saved !"})
}

// POST /login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.logger(c, op)

	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, msgInvalidBody)

		return
	}

	token, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrUserNotFound) {
		log.Info("login rejected", slog.String("email", req.Email))

		newErrorResponse(c, http.StatusBadRequest, msgUserNotFound)

		return
	}
	if err != nil {
		h.fail(c, log, err, msgUserNotFound)

		return
	}

	c.JSON(http.StatusOK, gin.H{"jwt": token})
}

// GET /me
func (h *Handler) Me(c *gin.Context) {
	const op = "handler.Me"

	log := h.logger(c, op)

	user, ok := h.authenticate(c, log)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, sanitize.User(user))
}

// GET /recettes
func (h *Handler) ListRecipes(c *gin.Context) {
	const op = "handler.ListRecipes"

	log := h.logger(c, op)

	recipes, err := h.serviceLayer.ListRecipes(c.Request.Context())
	if err != nil {
		h.fail(c, log, err, msgGeneric)

		return
	}

	c.JSON(http.StatusOK, gin.H{"total": len(recipes), "recipes": recipes})
}

// GET /recette/:id
func (h *Handler) GetRecipe(c *gin.Context) {
	const op = "handler.GetRecipe"

	log := h.logger(c, op)

	recipe, err := h.serviceLayer.GetRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, log, err, msgRecipeNotFound)

		return
	}

	c.JSON(http.StatusOK, recipe)
}

// POST /recette
func (h *Handler) CreateRecipe(c *gin.Context) {
	const op = "handler.CreateRecipe"

	log := h.logger(c, op)

	user, ok := h.authenticate(c, log)
	if !ok {
		return
	}

	var in models.RecipeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, msgInvalidBody)

		return
	}

	recipe, err := h.serviceLayer.CreateRecipe(c.Request.Context(), user, in)
	if err != nil {
		h.fail(c, log, err, msgGeneric)

		return
	}

	log.Info("recipe created", slog.String("recipe_id", recipe.ID), slog.String("user_id", user.ID))

	c.JSON(http.StatusOK, gin.H{"message": "Recipe saved !", "recette": recipe})
}

// PATCH /recette/:id
func (h *Handler) PatchRecipe(c *gin.Context) {
	const op = "handler.PatchRecipe"

	log := h.logger(c, op)

	user, ok := h.authenticate(c, log)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, msgInvalidBody)

		return
	}

	recipe, err := h.serviceLayer.PatchRecipe(c.Request.Context(), user, c.Param("id"), body)
	if err != nil {
		h.fail(c, log, err, msgRecipeNotFound)

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Recipe updated !", "recette": recipe})
}

// PUT /recette/:id
func (h *Handler) ReplaceRecipe(c *gin.Context) {
	const op = "handler.ReplaceRecipe"

	log := h.logger(c, op)

	user, ok := h.authenticate(c, log)
	if !ok {
		return
	}

	var in models.RecipeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Error("failed to read request body", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, msgInvalidBody)

		return
	}

	recipe, err := h.serviceLayer.ReplaceRecipe(c.Request.Context(), user, c.Param("id"), in)
	if err != nil {
		h.fail(c, log, err, msgRecipeNotFound)

		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Recipe updated !", "recette": recipe})
}

// DELETE /recette/:id
func (h *Handler) DeleteRecipe(c *gin.Context) {
	const op = "handler.DeleteRecipe"

	log := h.logger(c, op)

	user, ok := h.authenticate(c, log)
	if !ok {
		return
	}

	if err := h.serviceLayer.DeleteRecipe(c.Request.Context(), user, c.Param("id")); err != nil {
		h.fail(c, log, err, msgRecipeNotFound)

		return
	}

	log.Info("recipe deleted", slog.String("recipe_id", c.Param("id")), slog.String("user_id", user.ID))

	c.JSON(http.StatusOK, gin.H{"message": "Recipe deleted"})
}

// authenticate resolves the bearer token to a user or answers 401 itself.
func (h *Handler) authenticate(c *gin.Context, log *slog.Logger) (models.User, bool) {
	user, err := h.serviceLayer.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
	if err == nil {
		return user, true
	}

	if errors.Is(err, auth.ErrMissingToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUserNotFound) {
		log.Warn("authentication failed", slog.Any("error", err))

		newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized)

		return models.User{}, false
	}

	h.fail(c, log, err, msgGeneric)

	return models.User{}, false
}

// fail turns a service error into a JSON response. notFound is the message
// used when the target record does not exist.
func (h *Handler) fail(c *gin.Context, log *slog.Logger, err error, notFound string) {
	var (
		validation *models.ValidationError
		upstream   *storage.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		log.Info("validation failed", slog.Any("error", err))

		c.AbortWithStatusJSON(http.StatusBadRequest, validation)

	case errors.Is(err, service.ErrForbidden):
		log.Warn("ownership check failed", slog.Any("error", err))

		newErrorResponse(c, http.StatusForbidden, msgUnauthorized)

	case errors.Is(err, storage.ErrNotFound):
		log.Info("record not found", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, notFound)

	case errors.As(err, &upstream) && upstream.HasJSONBody():
		log.Error("store rejected request", slog.Int("status", upstream.Status), slog.Any("error", err))

		c.Data(http.StatusBadRequest, "application/json; charset=utf-8", upstream.Body)
		c.Abort()

	default:
		log.Error("request failed", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, msgGeneric)
	}
}

func (h *Handler) logger(c *gin.Context, op string) *slog.Logger {
	return h.log.With(slog.String("op", op), slog.String("request_id", c.GetString(requestIDKey)))
}
