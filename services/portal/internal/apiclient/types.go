package apiclient

import "faydo/services/portal/internal/account"

// Tokens is the access/refresh pair issued on successful authentication.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// CustomerRegistration is the payload for customer sign-up.
type CustomerRegistration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	PhoneNumber     string `json:"phone_number"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Gender          string `json:"gender"`
	BirthDate       string `json:"birth_date"`
	Address         string `json:"address,omitempty"`
}

// BusinessRegistration is the payload for business sign-up.
type BusinessRegistration struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	PhoneNumber     string  `json:"phone_number"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"password_confirm"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Address         string  `json:"address,omitempty"`
	Latitude        float64 `json:"business_location_latitude,omitempty"`
	Longitude       float64 `json:"business_location_longitude,omitempty"`
}

// Comment is a customer comment on a discount offer.
type Comment struct {
	ID         int64  `json:"id"`
	Text       string `json:"text"`
	UserName   string `json:"user_name"`
	CreatedAt  string `json:"created_at"`
	LikesCount int    `json:"likes_count"`
	IsLiked    bool   `json:"is_liked"`
}

// Package is a discount package as published by a business. The portal treats
// it as an opaque remote resource; only identity and display fields are kept.
type Package struct {
	ID            int64  `json:"id"`
	BusinessName  string `json:"business_name"`
	IsActive      bool   `json:"is_active"`
	Status        string `json:"status"`
	StatusDisplay string `json:"status_display,omitempty"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type authResponse struct {
	Message string             `json:"message"`
	User    account.RemoteUser `json:"user"`
	Tokens  Tokens             `json:"tokens"`
}

type profileResponse struct {
	User    account.RemoteUser     `json:"user"`
	Profile *account.RemoteProfile `json:"profile"`
	Role    string                 `json:"role,omitempty"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// pagedList handles endpoints that return either a bare array or a
// DRF-style {"results": [...]} envelope.
type pagedList[T any] struct {
	Results []T `json:"results"`
}
