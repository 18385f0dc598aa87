package message

// TenantCtx carries tenant identity and request correlation through the
// pipeline. It is created at ingress and propagated end-to-end; builder
// methods return a copy so a shared context is never mutated in place.
type TenantCtx struct {
	Env           string `json:"env" validate:"required,printascii"`
	Tenant        string `json:"tenant" validate:"required,printascii"`
	Team          string `json:"team,omitempty"`
	User          string `json:"user,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	TraceID       string `json:"trace_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Attempt       int    `json:"attempt,omitempty"`
}

// NewTenantCtx creates a context for the given environment and tenant.
func NewTenantCtx(env, tenant string) TenantCtx {
	return TenantCtx{Env: env, Tenant: tenant}
}

// WithTeam returns a copy with the team set.
func (c TenantCtx) WithTeam(team string) TenantCtx {
	c.Team = team
	return c
}

// WithUser returns a copy with the user set.
func (c TenantCtx) WithUser(user string) TenantCtx {
	c.User = user
	return c
}

// WithSession returns a copy with the session id set.
func (c TenantCtx) WithSession(id string) TenantCtx {
	c.SessionID = id
	return c
}

// WithCorrelation returns a copy with trace and correlation ids set.
func (c TenantCtx) WithCorrelation(traceID, correlationID string) TenantCtx {
	c.TraceID = traceID
	c.CorrelationID = correlationID
	return c
}

// NextAttempt returns a copy with the attempt counter incremented.
func (c TenantCtx) NextAttempt() TenantCtx {
	c.Attempt++
	return c
}
