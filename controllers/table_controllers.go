package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/mozoqr/middlewares"
	"github.com/yeremiapane/mozoqr/services"
	"github.com/yeremiapane/mozoqr/utils"
)

type TableController struct {
	Sessions      *services.SessionService
	PublicBaseURL string
}

func NewTableController(sessions *services.SessionService, publicBaseURL string) *TableController {
	return &TableController{Sessions: sessions, PublicBaseURL: publicBaseURL}
}

// GetOpenSession -> running bill of a table
func (tc *TableController) GetOpenSession(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	session, err := tc.Sessions.OpenSession(c.Request.Context(), middlewares.TenantID(c), number)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Open session", session)
}

// GetTableQR -> printable QR code pointing at the table's order page
func (tc *TableController) GetTableQR(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	if _, err := tc.Sessions.Table(c.Request.Context(), middlewares.TenantID(c), number); err != nil {
		respondServiceError(c, err)
		return
	}

	slug := middlewares.Tenant(c).Slug
	png, err := services.TableQR(tc.PublicBaseURL, slug, number)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s-table-%d.png"`, slug, number))
	c.Data(http.StatusOK, "image/png", png)
}

func tableNumber(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("number"), 10, 32)
	if err != nil || n == 0 {
		badRequest(c, errors.New("invalid table number"))
		return 0, false
	}
	return uint(n), true
}
