package account

import (
	"fmt"
	"strings"
	"time"
)

// RemoteUser is the user object as the Faydo API serialises it.
type RemoteUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
	Image       string `json:"image,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	DateJoined  string `json:"date_joined,omitempty"`
	LastLogin   string `json:"last_login,omitempty"`
}

// RemoteCity is the nested city object on profile payloads.
type RemoteCity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RemoteCategory is the nested service-category object on business profiles.
type RemoteCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RemoteProfile is the profile object attached to the "who am I" response.
// Customer and business accounts serialise different fields into the same
// slot; absent fields stay zero.
type RemoteProfile struct {
	Gender            string          `json:"gender,omitempty"`
	BirthDate         string          `json:"birth_date,omitempty"`
	City              *RemoteCity     `json:"city,omitempty"`
	Address           string          `json:"address,omitempty"`
	IsProfileComplete *bool           `json:"is_profile_complete,omitempty"`
	Name              string          `json:"name,omitempty"`
	BusinessPhone     string          `json:"business_phone,omitempty"`
	Category          *RemoteCategory `json:"category,omitempty"`
}

// MapUser converts a remote user/profile pair into the local User model.
// It fails on role strings outside the closed enum so a malformed response
// never produces a half-trusted session.
func MapUser(ru RemoteUser, rp *RemoteProfile) (*User, error) {
	role, err := ParseRole(ru.Role)
	if err != nil {
		return nil, err
	}
	if ru.ID == 0 {
		return nil, fmt.Errorf("user payload missing id")
	}
	if strings.TrimSpace(ru.Username) == "" {
		return nil, fmt.Errorf("user payload missing username")
	}

	user := &User{
		ID:          ru.ID,
		Username:    ru.Username,
		Email:       ru.Email,
		FirstName:   ru.FirstName,
		LastName:    ru.LastName,
		DisplayName: displayName(ru),
		PhoneNumber: ru.PhoneNumber,
		Role:        role,
		AvatarURL:   ru.Image,
		FetchedAt:   time.Now().UTC(),
	}

	switch role {
	case RoleCustomer:
		if rp != nil {
			user.Profile = &CustomerProfile{
				Gender:    rp.Gender,
				BirthDate: rp.BirthDate,
				Address:   rp.Address,
			}
			if rp.City != nil {
				user.Profile.City = rp.City.Name
			}
		}
		user.ProfileComplete = customerProfileComplete(ru, rp)
	case RoleBusiness:
		if rp != nil {
			user.Business = &BusinessProfile{
				Name:          rp.Name,
				BusinessPhone: rp.BusinessPhone,
				Address:       rp.Address,
			}
			if rp.Category != nil {
				user.Business.Category = rp.Category.Name
			}
			if rp.City != nil {
				user.Business.City = rp.City.Name
			}
		}
		user.ProfileComplete = true
	default:
		user.ProfileComplete = true
	}

	return user, nil
}

// displayName falls back from the server-provided display name to
// "first last" and finally to the username.
func displayName(ru RemoteUser) string {
	if name := strings.TrimSpace(ru.DisplayName); name != "" {
		return name
	}
	if name := strings.TrimSpace(strings.TrimSpace(ru.FirstName) + " " + strings.TrimSpace(ru.LastName)); name != "" {
		return name
	}
	return ru.Username
}

// customerProfileComplete prefers the server's flag and otherwise derives
// completeness from the required personal fields.
func customerProfileComplete(ru RemoteUser, rp *RemoteProfile) bool {
	if rp == nil {
		return false
	}
	if rp.IsProfileComplete != nil {
		return *rp.IsProfileComplete
	}
	if strings.TrimSpace(ru.FirstName) == "" || strings.TrimSpace(ru.LastName) == "" {
		return false
	}
	if strings.TrimSpace(rp.Gender) == "" || strings.TrimSpace(rp.BirthDate) == "" {
		return false
	}
	return rp.City != nil && strings.TrimSpace(rp.City.Name) != ""
}
