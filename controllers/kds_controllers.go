package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/mozoqr/kds"
	"github.com/yeremiapane/mozoqr/middlewares"
	"github.com/yeremiapane/mozoqr/utils"
)

type KDSController struct {
	Hub      *kds.Hub
	upgrader websocket.Upgrader
}

// NewKDSController accepts upgrades from the given origins; an empty list
// accepts any origin.
func NewKDSController(hub *kds.Hub, origins []string) *KDSController {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &KDSController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Serve -> websocket endpoint for kitchen displays
func (kc *KDSController) Serve(c *gin.Context) {
	restaurantID := middlewares.TenantID(c)
	role := c.GetString(middlewares.CtxRole)

	ws, err := kc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Warnf("kds upgrade: %v", err)
		return
	}
	kc.Hub.Register(restaurantID, ws, role)
	utils.InfoLogger.Printf("KDS client connected (restaurant=%d, role=%s)", restaurantID, role)

	// displays only listen; reading detects the disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	kc.Hub.Unregister(restaurantID, ws)
}
