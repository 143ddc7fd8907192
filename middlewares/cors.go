package middlewares

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS wraps the whole handler so preflight requests never reach gin.
func CORS(origins []string, debug bool) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           600,
		Debug:            debug,
	})
}
