package service

import (
	"github.com/layer-3/warden/core"
)

const (
	// LoginPath is where unauthenticated navigation lands
	LoginPath = "/auth"
	// DashboardPath is where navigation lacking a capability lands
	DashboardPath = "/dashboard"
)

// Route binds a view path to the capability it needs. An empty Requires means
// any authenticated session may enter.
type Route struct {
	Path     string
	Requires core.Capability
}

// DefaultRoutes is the protected view table.
var DefaultRoutes = []Route{
	{Path: DashboardPath},
	{Path: "/mint", Requires: core.CanMint},
	{Path: "/approval", Requires: core.CanTransferOrApprove},
	{Path: "/address-management", Requires: core.CanManageAddresses},
	{Path: "/transfer-restrict", Requires: core.CanSetLimits},
	{Path: "/identity-providers", Requires: core.CanManageIdentityProviders},
	{Path: "/minting-admin-voting", Requires: core.CanVoteAdminMinting},
	{Path: "/restriction-admin-voting", Requires: core.CanVoteAdminRestriction},
	{Path: "/idp-admin-voting", Requires: core.CanVoteAdminIdp},
}

// Verdict is the outcome of guarding one navigation. RedirectTo is empty when
// Allowed.
type Verdict struct {
	Allowed    bool
	RedirectTo string
	Reason     core.DenyReason
}

// RouteGuard decides whether navigation to a protected view proceeds
type RouteGuard struct {
	routes map[string]core.Capability
	order  []Route
}

// NewRouteGuard builds a guard over routes
func NewRouteGuard(routes []Route) *RouteGuard {
	g := &RouteGuard{
		routes: make(map[string]core.Capability, len(routes)),
		order:  append([]Route(nil), routes...),
	}
	for _, r := range routes {
		g.routes[r.Path] = r.Requires
	}
	return g
}

// Routes returns the guarded routes in declaration order
func (g *RouteGuard) Routes() []Route {
	return append([]Route(nil), g.order...)
}

// Protects reports whether path is guarded
func (g *RouteGuard) Protects(path string) bool {
	_, ok := g.routes[path]
	return ok
}

// Evaluate guards navigation to path. Paths outside the table always pass.
// Denials redirect silently: unauthenticated to the login view, lacking a
// capability to the dashboard.
func (g *RouteGuard) Evaluate(path string, state core.SessionState, record core.CapabilityRecord) Verdict {
	required, ok := g.routes[path]
	if !ok {
		return Verdict{Allowed: true}
	}

	decision := core.Authorize(state, record, required)
	if decision.Allowed {
		return Verdict{Allowed: true}
	}

	redirect := DashboardPath
	if decision.Reason == core.DenyNotAuthenticated {
		redirect = LoginPath
	}
	return Verdict{RedirectTo: redirect, Reason: decision.Reason}
}
