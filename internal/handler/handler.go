package handler

import (
	"auth_service/internal/service"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	serviceLayer service.Service
	log          *slog.Logger
}

func NewHandler(srvc service.Service, lgr *slog.Logger) *Handler {
	useJSONFieldNames()

	return &Handler{
		serviceLayer: srvc,
		log:          lgr,
	}
}

// apiGroups maps every mounted prefix to the version its responses carry.
var apiGroups = []struct {
	prefix  string
	version Version
}{
	{prefix: "/api", version: Unversioned},
	{prefix: "/api/v1", version: V1},
	{prefix: "/api/V1", version: V1},
	{prefix: "/api/v2", version: V2},
	{prefix: "/api/V2", version: V2},
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.log))

	router.GET("/health", h.Health)

	for _, g := range apiGroups {
		auth := router.Group(g.prefix+"/auth", withVersion(g.version))
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/refresh", h.Refresh)

			protected := auth.Group("", AuthMiddleware(h.serviceLayer, h.log))
			protected.POST("/me", h.Me)
			protected.POST("/logout", h.Logout)
		}
	}

	return router
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	var req registerRequest
	if err := bindRequest(c, &req); err != nil {
		h.invalidRequest(c, log, h.withRegistrationRules(c, log, req, err), "")

		return
	}

	resp, err := h.serviceLayer.Register(c.Request.Context(), registerInput(req))
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			log.Debug("registration rejected", slog.Any("fields", verr.Fields))

			newErrorResponse(c, http.StatusUnprocessableEntity, msgValidation, "", verr.Fields)

			return
		}

		log.Error("failed to register user", slog.Any("error", err))

		if errors.Is(err, service.ErrRegistration) {
			newErrorResponse(c, http.StatusUnprocessableEntity, msgRegistration, "", nil)

			return
		}

		newErrorResponse(c, http.StatusInternalServerError, msgInternalError, nil, nil)

		return
	}

	log.Info("user registered")

	newSuccessResponse(c, msgRegistered, resp)
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := bindRequest(c, &req); err != nil {
		h.invalidRequest(c, log, err, nil)

		return
	}

	resp, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			log.Debug("login rejected")

			newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized, nil, nil)

			return
		}

		log.Error("failed to login", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, msgInternalError, nil, nil)

		return
	}

	newSuccessResponse(c, msgLoggedIn, resp)
}

// POST /auth/me
func (h *Handler) Me(c *gin.Context) {
	const op = "handler.Me"

	log := h.log.With(slog.String("op", op))

	identity, ok := identityFromContext(c)
	if !ok {
		log.Error("failed to get identity from context")

		newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized, nil, nil)

		return
	}

	user, err := h.serviceLayer.Me(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationRequired) {
			log.Debug("token subject no longer exists", slog.Any("user_id", identity.UserID))

			newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized, nil, nil)

			return
		}

		log.Error("failed to get user by id", slog.Any("user_id", identity.UserID), slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, msgInternalError, nil, nil)

		return
	}

	newSuccessResponse(c, msgUserData, user)
}

// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	log := h.log.With(slog.String("op", op))

	identity, ok := identityFromContext(c)
	if !ok {
		log.Error("failed to get identity from context")

		newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized, nil, nil)

		return
	}

	if err := h.serviceLayer.Logout(c.Request.Context(), identity); err != nil {
		log.Error("failed to blacklist token", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, msgInternalError, nil, nil)

		return
	}

	log.Info("user logout", slog.Any("user_id", identity.UserID))

	newSuccessResponse(c, msgLoggedOut, nil)
}

// POST /auth/refresh
//
// The token is read here rather than by AuthMiddleware: an expired token is
// still refreshable inside its window, and a missing or blacklisted token is
// answered with 422 instead of 401.
func (h *Handler) Refresh(c *gin.Context) {
	const op = "handler.Refresh"

	log := h.log.With(slog.String("op", op))

	identity, err := h.serviceLayer.AuthenticateForRefresh(c.Request.Context(), bearerToken(c))
	if err != nil {
		reason, ok := tokenErrorReason(err)
		switch {
		case !ok:
			log.Error("failed to authenticate refresh", slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, msgInternalError, nil, nil)
		case errors.Is(err, service.ErrTokenNotProvided), errors.Is(err, service.ErrTokenBlacklisted):
			newErrorResponse(c, http.StatusUnprocessableEntity, msgRefreshFailed, reason, nil)
		default:
			newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized, reason, nil)
		}

		return
	}

	resp, err := h.serviceLayer.Refresh(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, service.ErrTokenBlacklisted) {
			log.Warn("token refreshed concurrently", slog.String("token_id", identity.TokenID))

			newErrorResponse(c, http.StatusUnprocessableEntity, msgRefreshFailed, "The token has been blacklisted", nil)

			return
		}

		log.Error("failed to refresh token", slog.Any("error", err))

		newErrorResponse(c, http.StatusUnprocessableEntity, msgRefreshFailed, "Token could not be refreshed", nil)

		return
	}

	newSuccessResponse(c, msgRefreshed, resp)
}

// withRegistrationRules adds the service-side problems (taken email, password
// byte limit) to the field errors of a request that failed binding, for the
// fields that are otherwise valid.
func (h *Handler) withRegistrationRules(c *gin.Context, log *slog.Logger, req registerRequest, err error) error {
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	ruleErr := h.serviceLayer.ValidateRegistration(c.Request.Context(), registerInput(req))

	var rules *service.ValidationError
	if !errors.As(ruleErr, &rules) {
		if ruleErr != nil {
			log.Error("failed to check registration rules", slog.Any("error", ruleErr))
		}
		return verr
	}

	for field, messages := range rules.Fields {
		if _, failed := verr.Fields[field]; failed {
			continue
		}
		for _, msg := range messages {
			verr.Add(field, msg)
		}
	}

	return verr
}

func registerInput(req registerRequest) service.RegisterInput {
	return service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
}

func (h *Handler) invalidRequest(c *gin.Context, log *slog.Logger, err error, reason any) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		newErrorResponse(c, http.StatusUnprocessableEntity, msgValidation, reason, verr.Fields)

		return
	}

	log.Debug("failed to read request body", slog.Any("error", err))

	newErrorResponse(c, http.StatusUnprocessableEntity, msgValidation, errMalformedInput, nil)
}
