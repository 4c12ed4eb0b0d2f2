package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"can-collector/internal/auth"
	"can-collector/internal/domain"
	"can-collector/internal/repository"
	"can-collector/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	deposits service.DepositService
	tokens   *auth.TokenManager
	webDir   string
	logger   *logrus.Logger
}

func NewHandler(users service.UserService, deposits service.DepositService, tokens *auth.TokenManager, webDir string, logger *logrus.Logger) *Handler {
	return &Handler{
		users:    users,
		deposits: deposits,
		tokens:   tokens,
		webDir:   webDir,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine, allowOrigin string) {
	router.Use(corsMiddleware(allowOrigin))
	router.Use(loggingMiddleware(h.logger))

	if h.webDir != "" {
		router.StaticFile("/", filepath.Join(h.webDir, "index.html"))
		router.StaticFile("/styles.css", filepath.Join(h.webDir, "styles.css"))
		router.StaticFile("/app.js", filepath.Join(h.webDir, "app.js"))
	}

	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		protected := api.Group("")
		protected.Use(authMiddleware(h.tokens))
		{
			protected.GET("/user", h.getUser)
			protected.POST("/start-collection", h.startCollection)
			protected.POST("/can-detected", h.canDetected)
			protected.POST("/invalid-item", h.invalidItem)
			protected.POST("/end-collection", h.endCollection)
			protected.POST("/redeem-voucher", h.redeemVoucher)
		}
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	TotalCans int64  `json:"totalCans"`
	Points    int64  `json:"points"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

type voucherResponse struct {
	Type      domain.VoucherType `json:"type"`
	Value     int64              `json:"value"`
	CreatedAt string             `json:"createdAt"`
}

type profileResponse struct {
	ID        int64             `json:"id"`
	Username  string            `json:"username"`
	TotalCans int64             `json:"totalCans"`
	Points    int64             `json:"points"`
	Vouchers  []voucherResponse `json:"vouchers"`
}

type startCollectionResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Status    string `json:"status"`
}

type canDetectedRequest struct {
	// SessionID is client-side bookkeeping only; the server accepts it for
	// wire compatibility with the vending machines but does not track it.
	SessionID string `json:"sessionId"`
}

type canDetectedResponse struct {
	Message   string `json:"message"`
	TotalCans int64  `json:"totalCans"`
	Points    int64  `json:"points"`
	CanCount  int    `json:"canCount"`
}

type invalidItemResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type endCollectionResponse struct {
	Message   string `json:"message"`
	TotalCans int64  `json:"totalCans"`
	Points    int64  `json:"points"`
}

type redeemVoucherRequest struct {
	VoucherType string `json:"voucherType" binding:"required"`
}

type redeemVoucherResponse struct {
	Message string          `json:"message"`
	Points  int64           `json:"points"`
	Voucher voucherResponse `json:"voucher"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: "username and password are required"})
		return
	}

	if _, err := h.users.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusCreated, messageResponse{Message: "registration successful"})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: "username and password are required"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
			return
		}
		h.serverError(c, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token: token,
		User: userSummary{
			ID:        user.ID,
			Username:  user.Username,
			TotalCans: user.TotalCans,
			Points:    user.Points,
		},
	})
}

func (h *Handler) getUser(c *gin.Context) {
	claims := claimsFrom(c)

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, messageResponse{Message: "user not found"})
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, profileToResponse(user))
}

func (h *Handler) startCollection(c *gin.Context) {
	sessionID := h.deposits.StartCollection()
	c.JSON(http.StatusOK, startCollectionResponse{
		SessionID: sessionID,
		Message:   "collection started",
		Status:    "collecting",
	})
}

func (h *Handler) canDetected(c *gin.Context) {
	var req canDetectedRequest
	_ = c.ShouldBindJSON(&req) // sessionId is optional and unvalidated

	claims := claimsFrom(c)
	user, err := h.deposits.CanDetected(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, messageResponse{Message: "user not found"})
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, canDetectedResponse{
		Message:   "can accepted",
		TotalCans: user.TotalCans,
		Points:    user.Points,
		CanCount:  1,
	})
}

func (h *Handler) invalidItem(c *gin.Context) {
	c.JSON(http.StatusOK, invalidItemResponse{
		Message: "item is not an aluminum can, returned",
		Error:   "invalid_item",
	})
}

func (h *Handler) endCollection(c *gin.Context) {
	claims := claimsFrom(c)

	user, err := h.deposits.EndCollection(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, messageResponse{Message: "user not found"})
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, endCollectionResponse{
		Message:   "collection finished",
		TotalCans: user.TotalCans,
		Points:    user.Points,
	})
}

func (h *Handler) redeemVoucher(c *gin.Context) {
	var req redeemVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: "voucherType is required"})
		return
	}

	voucherType, err := domain.ParseVoucherType(req.VoucherType)
	if err != nil {
		c.JSON(http.StatusBadRequest, messageResponse{Message: service.ErrInvalidVoucherType.Error()})
		return
	}

	claims := claimsFrom(c)
	user, voucher, err := h.deposits.RedeemVoucher(c.Request.Context(), claims.UserID, voucherType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidVoucherType), errors.Is(err, service.ErrInsufficientPoints):
			c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, messageResponse{Message: "user not found"})
		default:
			h.serverError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, redeemVoucherResponse{
		Message: "voucher redeemed",
		Points:  user.Points,
		Voucher: voucherToResponse(*voucher),
	})
}

// serverError hides internal failure detail from clients; the cause goes to
// the server log only.
func (h *Handler) serverError(c *gin.Context, err error) {
	h.logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("handler failed")
	c.JSON(http.StatusInternalServerError, messageResponse{Message: "server error"})
}

func profileToResponse(user *domain.User) profileResponse {
	resp := profileResponse{
		ID:        user.ID,
		Username:  user.Username,
		TotalCans: user.TotalCans,
		Points:    user.Points,
		Vouchers:  make([]voucherResponse, len(user.Vouchers)),
	}
	for i := range user.Vouchers {
		resp.Vouchers[i] = voucherToResponse(user.Vouchers[i])
	}
	return resp
}

func voucherToResponse(v domain.Voucher) voucherResponse {
	return voucherResponse{
		Type:      v.Type,
		Value:     v.Value,
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
	}
}
