package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// AttestPath is where the attestor accepts requests
const AttestPath = "/attest"

// AttestorHandlers serves identity attestations
type AttestorHandlers struct {
	attestor ports.Attestor
}

// NewAttestorHandlers creates new attestor handlers
func NewAttestorHandlers(attestor ports.Attestor) *AttestorHandlers {
	return &AttestorHandlers{attestor: attestor}
}

// Attest signs an attestation for the requested address
func (h *AttestorHandlers) Attest(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	subject, err := core.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	attestation, err := h.attestor.Attest(c.Request.Context(), subject)
	if err != nil {
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, core.ErrIssuerUnavailable):
			statusCode = http.StatusServiceUnavailable
		case errors.Is(err, core.ErrInvalidAddress):
			statusCode = http.StatusBadRequest
		}

		c.JSON(statusCode, gin.H{"error": core.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, attestation)
}

// SetupAttestorRouter sets up the attestor's Gin router
func SetupAttestorRouter(attestor ports.Attestor) *gin.Engine {
	router := gin.Default()
	router.POST(AttestPath, NewAttestorHandlers(attestor).Attest)
	return router
}
