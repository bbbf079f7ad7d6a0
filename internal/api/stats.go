// internal/api/stats.go
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
)

// initStatsRoutes registers the statistics endpoints
func (c *Controller) initStatsRoutes() {
	c.Group.GET("/stats/:project", c.GetProjectStats)
}

// StatsResponse reports aggregate numbers for one project.
type StatsResponse struct {
	TotalNotes  int64  `json:"total_notes"`
	ProjectName string `json:"project_name"`
}

// GetProjectStats handles GET /api/stats/:project. Counts are served from
// a short-lived cache, editor status lines poll this endpoint aggressively.
func (c *Controller) GetProjectStats(ctx echo.Context) error {
	projectName := pathParam(ctx, "project")

	if cached, found := c.statsCache.Get(projectName); found {
		if stats, ok := cached.(StatsResponse); ok {
			return ctx.JSON(http.StatusOK, stats)
		}
	}

	total, err := c.DS.CountNotes(ctx.Request().Context(), projectName)
	if err != nil {
		return c.HandleDatastoreError(ctx, err, "Project not found")
	}

	stats := StatsResponse{TotalNotes: total, ProjectName: projectName}
	c.statsCache.Set(projectName, stats, cache.DefaultExpiration)

	return ctx.JSON(http.StatusOK, stats)
}
