package entity

import (
	"fmt"
	"strings"
)

// Role is the acting role of an authenticated user
type Role string

const (
	RoleIssuer         Role = "issuer"
	RoleRepresentative Role = "representative"
	RoleCarrier        Role = "carrier"
	RoleAdmin          Role = "admin"
)

var roleAliases = map[string]Role{
	"issuer":         RoleIssuer,
	"emissor":        RoleIssuer,
	"representative": RoleRepresentative,
	"representante":  RoleRepresentative,
	"carrier":        RoleCarrier,
	"transportador":  RoleCarrier,
	"admin":          RoleAdmin,
	"administrador":  RoleAdmin,
}

// ParseRole accepts both the English role names and the labels used by the municipal backend
func ParseRole(raw string) (Role, error) {
	if role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return role, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

func (r Role) String() string {
	return string(r)
}

// Actor is the identity every operation is performed on behalf of.
// Carriers act for one vessel at a time, chosen from Vessels.
type Actor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Login        string   `json:"login,omitempty"`
	Role         Role     `json:"role"`
	CPF          string   `json:"cpf,omitempty"`
	Vessels      []string `json:"vessels,omitempty"`
	ActiveVessel string   `json:"active_vessel,omitempty"`
	Token        string   `json:"-"`
}

// Is reports whether the actor holds one of the given roles
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// User is a stored account in the local backend
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Login        string `json:"login"`
	Role         Role   `json:"role"`
	CPF          string `json:"cpf,omitempty"`
	Vessel       string `json:"vessel,omitempty"`
	Vessels      string `json:"vessels,omitempty"`
	PasswordHash string `json:"-"`
	BackendToken string `json:"-"`
}
