package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-client/internal/backend"
	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

const userKey = "helpdesk.user"

type AuthHandler struct {
	store *backend.Store
}

func NewAuthHandler(store *backend.Store) *AuthHandler {
	return &AuthHandler{store: store}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string  `json:"email" binding:"required"`
	Password string  `json:"password" binding:"required"`
	FullName *string `json:"full_name"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	tok, err := h.store.Login(req.Email, req.Password)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	u, err := h.store.Register(req.Email, req.Password, req.FullName)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// RequireUser resolves the bearer token and stores the user in the
// request context. Requests without a valid token get 401.
func (h *AuthHandler) RequireUser(c *gin.Context) {
	raw := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || token == "" {
		abort(c, &backend.Error{Kind: errs.ErrAuthExpired, Detail: "Not authenticated"})
		return
	}
	u, err := h.store.Authenticate(token)
	if err != nil {
		abort(c, err)
		return
	}
	c.Set(userKey, u)
	c.Next()
}

func currentUser(c *gin.Context) *model.User {
	return c.MustGet(userKey).(*model.User)
}
