package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-client/internal/backend"
)

// OperatorHandler — эндпоинты панели оператора (только is_admin).
type OperatorHandler struct {
	store *backend.Store
}

func NewOperatorHandler(store *backend.Store) *OperatorHandler {
	return &OperatorHandler{store: store}
}

func (h *OperatorHandler) List(c *gin.Context) {
	q, ok := listQuery(c)
	if !ok {
		return
	}
	list, err := h.store.OperatorTickets(currentUser(c), q)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *OperatorHandler) Get(c *gin.Context) {
	t, err := h.store.OperatorTicket(currentUser(c), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *OperatorHandler) Take(c *gin.Context) {
	t, err := h.store.Take(currentUser(c), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *OperatorHandler) Respond(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	m, err := h.store.Respond(currentUser(c), c.Param("id"), req.Content)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *OperatorHandler) Stats(c *gin.Context) {
	st, err := h.store.Stats(currentUser(c))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
