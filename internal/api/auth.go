package api

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/AaronLay10/SentientDialogue/internal/config"
	"github.com/AaronLay10/SentientDialogue/internal/mqtt"
)

// Role represents an authorization role. Operators drive the dialogue;
// only admins may reset it.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// account is one basic-auth login.
type account struct {
	user string
	pass string
	role Role
}

// accounts is checked in order, admin first. Empty means auth is disabled.
var accounts []account

// InitAuth installs credentials resolved by config.LoadCredentials.
// Without admin credentials authentication is disabled and every caller
// acts as admin.
func InitAuth(creds *config.Credentials) {
	accounts = nil
	if creds == nil || creds.AdminUser == "" || creds.AdminPass == "" {
		if creds != nil && (creds.OperatorUser != "" || creds.OperatorPass != "") {
			log.Printf("auth: operator credentials ignored without admin credentials")
		}
		return
	}

	accounts = append(accounts, account{creds.AdminUser, creds.AdminPass, RoleAdmin})
	if creds.OperatorUser != "" && creds.OperatorPass != "" {
		accounts = append(accounts, account{creds.OperatorUser, creds.OperatorPass, RoleOperator})
	}
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return len(accounts) > 0
}

// authenticate returns the caller's role, or "" for bad credentials.
func authenticate(r *http.Request) Role {
	if !IsAuthEnabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	for _, a := range accounts {
		// Compare both fields so timing does not reveal which one matched.
		u := secureCompare(user, a.user)
		p := secureCompare(pass, a.pass)
		if u && p {
			return a.role
		}
	}
	return ""
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type roleKey struct{}

// RoleFrom returns the role RequireRole authenticated for this request.
func RoleFrom(ctx context.Context) Role {
	role, _ := ctx.Value(roleKey{}).(Role)
	return role
}

// RequireRole wraps a handler and requires one of the specified roles.
// The authenticated role is available to the handler through RoleFrom.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="Sentient Dialogue"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r.WithContext(context.WithValue(r.Context(), roleKey{}, role)))
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin OR operator role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// inputRoles lists who may send each dialogue input over HTTP.
func inputRoles(action mqtt.Action) []Role {
	if action == mqtt.ActionReset {
		return []Role{RoleAdmin}
	}
	return []Role{RoleAdmin, RoleOperator}
}

// RequireInput wraps an input endpoint with the roles allowed for action.
func RequireInput(action mqtt.Action, handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, inputRoles(action)...)
}
