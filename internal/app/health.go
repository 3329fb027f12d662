package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (a *App) HealthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ReadyzHandler runs every readiness check and reports 503 if any fails.
func (a *App) ReadyzHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for _, chk := range a.Checks {
		if err := chk.Check(ctx); err != nil {
			ready = false
			checks[chk.Name] = err.Error()
			continue
		}
		checks[chk.Name] = "ok"
	}

	body := gin.H{"ok": ready, "checks": checks}
	if a.PoolStats != nil {
		body["pool"] = a.PoolStats()
	}
	if !ready {
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
