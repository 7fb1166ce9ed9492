package auth

// Scopes granted to user tokens.
const (
	ScopeActivityRead  = "activity:read"
	ScopeActivityWrite = "activity:write"
	ScopeProfileWrite  = "profile:write"
)

// DefaultScopes are issued on login and registration.
var DefaultScopes = []string{ScopeActivityRead, ScopeActivityWrite, ScopeProfileWrite}
