package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/service"
)

type SessionHandler struct {
	svc    service.SessionService
	stores service.StoreFactory
}

func NewSessionHandler(svc service.SessionService, stores service.StoreFactory) *SessionHandler {
	return &SessionHandler{svc: svc, stores: stores}
}

// POST /api/session/register
func (h *SessionHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Registration failed")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// POST /api/session/login
func (h *SessionHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Login failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/session/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), clientStore(c, h.stores)); err != nil {
		respondError(c, err, "Logout failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/session/me
func (h *SessionHandler) Me(c *gin.Context) {
	sess := h.svc.Current(c.Request.Context(), clientStore(c, h.stores))
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": sess})
}

// GET /api/session/observer
func (h *SessionHandler) ObserverName(c *gin.Context) {
	name := clientStore(c, h.stores).ObserverName(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"observer": name})
}

// PUT /api/session/observer
func (h *SessionHandler) SetObserverName(c *gin.Context) {
	var body struct {
		Observer string `json:"observer"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	name := strings.TrimSpace(body.Observer)
	if err := clientStore(c, h.stores).SetObserverName(c.Request.Context(), name); err != nil {
		respondError(c, err, "Could not save observer name")
		return
	}
	c.JSON(http.StatusOK, gin.H{"observer": name})
}
