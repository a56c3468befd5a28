package account

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles the platform recognises. Unknown
// role strings from the server are rejected during mapping rather than
// carried around as raw text.
type Role string

const (
	RoleCustomer         Role = "customer"
	RoleBusiness         Role = "business"
	RoleAdmin            Role = "admin"
	RoleITManager        Role = "it_manager"
	RoleProjectManager   Role = "project_manager"
	RoleSupporter        Role = "supporter"
	RoleFinancialManager Role = "financial_manager"
)

// ParseRole validates a role string received from the server.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(raw))
	switch role {
	case RoleCustomer, RoleBusiness, RoleAdmin, RoleITManager,
		RoleProjectManager, RoleSupporter, RoleFinancialManager:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// IsStaff reports whether the role belongs to the platform's back-office set.
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleITManager, RoleProjectManager, RoleSupporter, RoleFinancialManager:
		return true
	default:
		return false
	}
}

// CustomerProfile carries the customer-specific profile fields the
// completeness rule depends on.
type CustomerProfile struct {
	Gender    string `json:"gender,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
	City      string `json:"city,omitempty"`
	Address   string `json:"address,omitempty"`
}

// BusinessProfile carries the business-specific profile fields.
type BusinessProfile struct {
	Name          string `json:"name,omitempty"`
	BusinessPhone string `json:"business_phone,omitempty"`
	Category      string `json:"category,omitempty"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
}

// User is the local projection of a remote account.
type User struct {
	ID              int64            `json:"id"`
	Username        string           `json:"username"`
	Email           string           `json:"email"`
	FirstName       string           `json:"first_name,omitempty"`
	LastName        string           `json:"last_name,omitempty"`
	DisplayName     string           `json:"display_name"`
	PhoneNumber     string           `json:"phone_number"`
	Role            Role             `json:"role"`
	AvatarURL       string           `json:"avatar_url,omitempty"`
	Profile         *CustomerProfile `json:"profile,omitempty"`
	Business        *BusinessProfile `json:"business_profile,omitempty"`
	ProfileComplete bool             `json:"profile_complete"`
	FetchedAt       time.Time        `json:"fetched_at,omitempty"`
}
