package stubapi

import (
	"context"
	"net/http"
	"strings"

	"faydo/services/portal/internal/account"
	"faydo/services/portal/internal/apiclient"
)

func contextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

func usernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	rec, ok := s.lookup(req.Username)
	if !ok || rec.Password != req.Password {
		respondError(w, http.StatusBadRequest, "wrong username or password")
		return
	}

	s.respondAuth(w, http.StatusOK, "login successful", rec)
}

func (s *Server) handleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req apiclient.CustomerRegistration
	if !decodeBody(w, r, &req) {
		return
	}
	if detail, ok := s.checkRegistration(req.Username, req.Password, req.PasswordConfirm, req.PhoneNumber); !ok {
		respondError(w, http.StatusBadRequest, detail)
		return
	}

	rec := &userRecord{
		User: account.RemoteUser{
			Username:    req.Username,
			Email:       req.Email,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			PhoneNumber: req.PhoneNumber,
			Role:        string(account.RoleCustomer),
		},
		Profile: &account.RemoteProfile{
			Gender:    req.Gender,
			BirthDate: req.BirthDate,
			Address:   req.Address,
		},
		Password: req.Password,
	}
	s.addUser(rec)

	s.respondAuth(w, http.StatusCreated, "registration successful", rec)
}

func (s *Server) handleRegisterBusiness(w http.ResponseWriter, r *http.Request) {
	var req apiclient.BusinessRegistration
	if !decodeBody(w, r, &req) {
		return
	}
	if detail, ok := s.checkRegistration(req.Username, req.Password, req.PasswordConfirm, req.PhoneNumber); !ok {
		respondError(w, http.StatusBadRequest, detail)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name: this field is required")
		return
	}

	rec := &userRecord{
		User: account.RemoteUser{
			Username:    req.Username,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
			Role:        string(account.RoleBusiness),
		},
		Profile: &account.RemoteProfile{
			Name:    req.Name,
			Address: req.Address,
		},
		Password: req.Password,
	}
	s.addUser(rec)

	s.respondAuth(w, http.StatusCreated, "registration successful", rec)
}

// checkRegistration validates the fields shared by both registration forms.
func (s *Server) checkRegistration(username, password, confirm, phone string) (string, bool) {
	if strings.TrimSpace(username) == "" {
		return "username: this field is required", false
	}
	if password == "" {
		return "password: this field is required", false
	}
	if password != confirm {
		return "password_confirm: passwords do not match", false
	}
	if strings.TrimSpace(phone) == "" {
		return "phone_number: this field is required", false
	}
	if _, exists := s.lookup(username); exists {
		return "username: already taken", false
	}
	return "", true
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(usernameFromContext(r.Context()))
	if !ok {
		respondError(w, http.StatusUnauthorized, "user no longer exists")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user":    rec.User,
		"profile": rec.Profile,
		"role":    rec.User.Role,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	access, ok := s.tokens.redeemRefresh(req.Refresh)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.tokens.revoke(req.Refresh)
	respondJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		respondError(w, http.StatusBadRequest, "phone_number: this field is required")
		return
	}

	s.mu.Lock()
	s.otps[req.PhoneNumber] = devOTPCode
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]string{"message": "otp sent"})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
		OTPCode     string `json:"otp_code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	code, ok := s.otps[req.PhoneNumber]
	if ok && code == req.OTPCode {
		delete(s.otps, req.PhoneNumber)
	}
	s.mu.Unlock()

	if !ok || code != req.OTPCode {
		respondError(w, http.StatusBadRequest, "invalid or expired otp code")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "otp verified"})
}

// respondAuth issues a token pair and writes the auth envelope the portal
// client expects.
func (s *Server) respondAuth(w http.ResponseWriter, status int, message string, rec *userRecord) {
	access, refresh := s.tokens.issuePair(rec.User.Username)
	respondJSON(w, status, map[string]any{
		"message": message,
		"user":    rec.User,
		"tokens":  map[string]string{"access": access, "refresh": refresh},
	})
}
