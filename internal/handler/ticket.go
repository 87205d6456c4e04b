package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-client/internal/backend"
	"github.com/psds-microservice/helpdesk-client/internal/model"
)

type TicketHandler struct {
	store *backend.Store
}

func NewTicketHandler(store *backend.Store) *TicketHandler {
	return &TicketHandler{store: store}
}

type createTicketRequest struct {
	Title    string `json:"title" binding:"required"`
	Category string `json:"category"`
}

type contentRequest struct {
	Content string `json:"content" binding:"required"`
}

// listQuery parses status_filter (comma separated), page and page_size.
func listQuery(c *gin.Context) (backend.Query, bool) {
	var q backend.Query
	if v := c.Query("status_filter"); v != "" {
		for _, part := range strings.Split(v, ",") {
			st := model.TicketStatus(strings.TrimSpace(part))
			if !st.Valid() {
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Estado no válido: " + string(st)})
				return q, false
			}
			q.Statuses = append(q.Statuses, st)
		}
	}
	for key, dst := range map[string]*int{"page": &q.Page, "page_size": &q.PageSize} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Parámetro inválido: " + key})
			return q, false
		}
		*dst = n
	}
	return q, true
}

func (h *TicketHandler) List(c *gin.Context) {
	q, ok := listQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.store.ListTickets(currentUser(c), q))
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	t, err := h.store.CreateTicket(currentUser(c), req.Title, model.TicketCategory(req.Category))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Get(c *gin.Context) {
	t, err := h.store.GetTicket(currentUser(c), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Close(c *gin.Context) {
	t, err := h.store.CloseTicket(currentUser(c), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Messages(c *gin.Context) {
	history, err := h.store.Messages(currentUser(c), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *TicketHandler) Send(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	m, err := h.store.SendMessage(currentUser(c), c.Param("id"), req.Content)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}
