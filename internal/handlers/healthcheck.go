package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// StatusHandler reports component readiness for the /status route.
type StatusHandler struct {
	serviceName string
	version     string
	components  func() map[string]string
}

func NewStatusHandler(serviceName, version string, components func() map[string]string) *StatusHandler {
	return &StatusHandler{serviceName: serviceName, version: version, components: components}
}

// GET /
func (h *StatusHandler) Root(c *gin.Context) {
	RespondOK(c, gin.H{
		"service": h.serviceName,
		"version": h.version,
	})
}

// GET /status
func (h *StatusHandler) Status(c *gin.Context) {
	payload := gin.H{
		"service": h.serviceName,
		"version": h.version,
		"status":  "running",
	}
	if h.components != nil {
		payload["components"] = h.components()
	}
	RespondOK(c, payload)
}
