package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"hospitalrecords/internal/models"
	"hospitalrecords/internal/services"
)

type AccountUnlocker interface {
	Unlock(ctx context.Context, accountID int64) (*models.Account, error)
}

type SessionAuditor interface {
	ListSessions(ctx context.Context, accountID int64, limit int) ([]*models.Session, error)
	SessionReport(ctx context.Context, accountID int64) (string, error)
}

type AdminHandler struct {
	accounts AccountUnlocker
	audit    SessionAuditor
}

func NewAdminHandler(accounts AccountUnlocker, audit SessionAuditor) *AdminHandler {
	return &AdminHandler{accounts: accounts, audit: audit}
}

var errBadID = errors.New("invalid account id")

// @Summary      Unlock an account
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Account ID"
// @Success      200  {object}  models.Account
// @Failure      404  {object}  ErrorBody
// @Router       /admin/accounts/{id}/unlock [post]
func (h *AdminHandler) Unlock(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		badRequest(c, errBadID)
		return
	}
	a, err := h.accounts.Unlock(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary      Sessions of an account
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      int  true   "Account ID"
// @Param        limit  query     int  false  "Max rows (default 100, at most 1000)"
// @Success      200    {array}   models.Session
// @Failure      404    {object}  ErrorBody
// @Router       /admin/accounts/{id}/sessions [get]
func (h *AdminHandler) ListSessions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		badRequest(c, errBadID)
		return
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = services.DefaultSessionListLimit
	}
	limit = min(limit, services.MaxSessionListLimit)
	list, err := h.audit.ListSessions(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []*models.Session{}
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Session audit report (PDF)
// @Tags         Admin
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  int  true  "Account ID"
// @Success      200  {file}  file
// @Failure      404  {object}  ErrorBody
// @Router       /admin/accounts/{id}/sessions/report [get]
func (h *AdminHandler) SessionReport(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		badRequest(c, errBadID)
		return
	}
	path, err := h.audit.SessionReport(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
