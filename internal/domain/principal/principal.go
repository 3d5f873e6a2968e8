// Package principal contains the authenticated user model.
package principal

import "strings"

// Principal is the authenticated user as surfaced by the identity gateway.
// It exists only for the lifetime of a session and is never persisted.
type Principal struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// AllowedDomain reports whether the principal's email ends with one of the
// configured domain suffixes.
func (p Principal) AllowedDomain(domains []string) bool {
	email := strings.ToLower(p.Email)
	for _, d := range domains {
		if strings.HasSuffix(email, "@"+strings.ToLower(d)) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal is the configured admin.
// Admin status is an exact email match, nothing more.
func (p Principal) IsAdmin(adminEmail string) bool {
	return adminEmail != "" && p.Email == adminEmail
}
