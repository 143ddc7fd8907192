package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/mozoqr/middlewares"
	"github.com/yeremiapane/mozoqr/services"
	"github.com/yeremiapane/mozoqr/utils"
)

type MenuController struct {
	Catalog *services.CatalogService
}

func NewMenuController(catalog *services.CatalogService) *MenuController {
	return &MenuController{Catalog: catalog}
}

// GetMenu
func (mc *MenuController) GetMenu(c *gin.Context) {
	menu, err := mc.Catalog.Menu(c.Request.Context(), middlewares.TenantID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu", menu)
}

// UpdateProduct -> change price or availability
func (mc *MenuController) UpdateProduct(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, errors.New("invalid product id"))
		return
	}
	var body struct {
		Price     *decimal.Decimal `json:"price"`
		Available *bool            `json:"available"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}

	product, err := mc.Catalog.UpdateProduct(c.Request.Context(), middlewares.TenantID(c), uint(id), services.ProductPatch{
		Price:     body.Price,
		Available: body.Available,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.InfoLogger.Printf("Product %d updated by user %d", product.ID, c.GetUint(middlewares.CtxUserID))
	utils.RespondJSON(c, http.StatusOK, "Product updated", product)
}
