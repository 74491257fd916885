package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "geoshard-pipeline/docs"
	"geoshard-pipeline/internal/api/handler"
	"geoshard-pipeline/pkg/router"
)

// RegisterRoutes wires the REST surface and the swagger UI.
func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.POST("/api/v1/upload", h.Upload)
	r.GET("/api/v1/jobs", h.Jobs)
	r.GET("/api/v1/status/*", h.Status)

	r.Mount("/swagger/", httpSwagger.WrapHandler)
}
