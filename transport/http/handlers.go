package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/layer-3/warden/adapters/wallet"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
)

const viewContextKey = "view"

type sessionResponse struct {
	State        core.SessionState `json:"state"`
	Address      *common.Address   `json:"address,omitempty"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	Status       string            `json:"status,omitempty"`
	Loaded       bool              `json:"loaded"`
	Version      uint64            `json:"version"`
	Capabilities []core.Capability `json:"capabilities"`
}

func newSessionResponse(view service.View) sessionResponse {
	out := sessionResponse{
		State:        view.State,
		Address:      view.Session.Address,
		ExpiresAt:    view.Session.ExpiresAt,
		Loaded:       view.Loaded,
		Version:      view.Version,
		Capabilities: view.Capabilities.List(),
	}
	if view.State == core.StateAuthenticated {
		out.Status = view.Record.Status()
	} else {
		out.Capabilities = []core.Capability{}
	}
	return out
}

type overviewResponse struct {
	Address      common.Address    `json:"address"`
	Status       string            `json:"status"`
	Balance      string            `json:"balance,omitempty"`
	Unlimited    bool              `json:"unlimited"`
	Limit        string            `json:"transfer_limit"`
	SpentToday   string            `json:"spent_today"`
	Remaining    string            `json:"remaining_today,omitempty"`
	MintedToday  string            `json:"minted_today"`
	Capabilities []core.Capability `json:"capabilities"`

	VerificationExpiry  *time.Time `json:"verification_expiry,omitempty"`
	VerificationExpired bool       `json:"verification_expired"`
}

type receiptResponse struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
}

// AppHandlers contains HTTP handlers for session, view and action endpoints
type AppHandlers struct {
	authService *service.AuthService
}

// NewAppHandlers creates new handlers
func NewAppHandlers(authService *service.AuthService) *AppHandlers {
	return &AppHandlers{
		authService: authService,
	}
}

// Login connects the wallet
func (h *AppHandlers) Login(c *gin.Context) {
	var req struct {
		Passphrase string `json:"passphrase"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := wallet.WithPassphrase(c.Request.Context(), req.Passphrase)
	if _, err := h.authService.Login(ctx); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(h.authService.View(c.Request.Context())))
}

// Logout ends the session
func (h *AppHandlers) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Session reports the current session and capabilities
func (h *AppHandlers) Session(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionResponse(h.authService.View(c.Request.Context())))
}

// LoginView is the unguarded login view
func (h *AppHandlers) LoginView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"view":    service.LoginPath,
		"session": newSessionResponse(h.authService.View(c.Request.Context())),
	})
}

// View renders a guarded view along with the ledger parameters it shows.
// The guard middleware has already let the request through.
func (h *AppHandlers) View(c *gin.Context) {
	view := currentView(c)
	body := gin.H{
		"view":    c.FullPath(),
		"session": newSessionResponse(view),
	}
	if view.Session.Address != nil {
		if details := h.authService.ViewDetails(c.Request.Context(), c.FullPath(), *view.Session.Address); len(details) > 0 {
			body["details"] = details
		}
	}

	c.JSON(http.StatusOK, body)
}

// Overview returns the dashboard summary
func (h *AppHandlers) Overview(c *gin.Context) {
	overview, err := h.authService.Overview(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, overviewResponse{
		Address:      overview.Address,
		Status:       overview.Status,
		Balance:      overview.Balance,
		Unlimited:    overview.Unlimited,
		Limit:        overview.Limit,
		SpentToday:   overview.SpentToday,
		Remaining:    overview.Remaining,
		MintedToday:  overview.MintedToday,
		Capabilities: overview.Capabilities,

		VerificationExpiry:  overview.VerificationExpiry,
		VerificationExpired: overview.VerificationExpired,
	})
}

// Capabilities returns the derived capability set
func (h *AppHandlers) Capabilities(c *gin.Context) {
	view := currentView(c)
	c.JSON(http.StatusOK, gin.H{
		"version":      view.Version,
		"capabilities": view.Capabilities.List(),
	})
}

// Refresh re-reads the capability record on demand
func (h *AppHandlers) Refresh(c *gin.Context) {
	if err := h.authService.Refresh(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(h.authService.View(c.Request.Context())))
}

// Submit sends a gated ledger action
func (h *AppHandlers) Submit(c *gin.Context) {
	var req struct {
		From   string `json:"from"`
		Target string `json:"target" binding:"required"`
		Amount string `json:"amount"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	target, err := core.ParseAddress(req.Target)
	if err != nil {
		writeError(c, err)
		return
	}

	action := service.Action{Function: c.Param("function"), Target: target}
	if _, ok := service.Actions[action.Function]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown action"})
		return
	}

	if req.From != "" {
		if action.From, err = core.ParseAddress(req.From); err != nil {
			writeError(c, err)
			return
		}
	}

	if req.Amount != "" {
		var amount *uint256.Int
		if amount, err = core.ParseUnits(req.Amount); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		action.Amount = amount
	}

	receipt, err := h.authService.Submit(c.Request.Context(), action)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, receiptResponse{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	})
}

// VerifyIdentity attests the connected address and submits the attestation
func (h *AppHandlers) VerifyIdentity(c *gin.Context) {
	receipt, err := h.authService.VerifyIdentity(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, receiptResponse{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
	})
}

func currentView(c *gin.Context) service.View {
	if v, ok := c.Get(viewContextKey); ok {
		if view, ok := v.(service.View); ok {
			return view
		}
	}
	return service.View{}
}

// writeError maps an error to a status code and a short user-facing reason
func writeError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrNotAuthenticated), errors.Is(err, core.ErrAuthenticationFailed):
		statusCode = http.StatusUnauthorized
	case errors.Is(err, core.ErrMissingCapability):
		statusCode = http.StatusForbidden
	case errors.Is(err, core.ErrInvalidAddress):
		statusCode = http.StatusBadRequest
	case errors.Is(err, core.ErrSuperseded), errors.Is(err, core.ErrSubmitRejected):
		statusCode = http.StatusConflict
	case errors.Is(err, core.ErrSubmitReverted):
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrIssuerUnavailable):
		statusCode = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrReadFailed):
		statusCode = http.StatusBadGateway
	}

	c.JSON(statusCode, gin.H{"error": core.UserMessage(err)})
}
