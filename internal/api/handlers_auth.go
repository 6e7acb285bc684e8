package api

import (
	"net/http"

	"github.com/paper-trader/internal/service"
)

// authResponse is the wire shape for register/login/refresh
type authResponse struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName,omitempty"`
	Tier         string `json:"tier"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
}

func toAuthResponse(result *service.AuthResult) *authResponse {
	return &authResponse{
		UserID:       result.User.ID,
		Email:        result.User.Email,
		DisplayName:  result.User.DisplayName,
		Tier:         string(result.User.Tier),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// handleRegister handles POST /auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	result, err := s.accounts.Register(r.Context(), &input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toAuthResponse(result))
}

// handleLogin handles POST /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	result, err := s.accounts.Login(r.Context(), &input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAuthResponse(result))
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// handleRefresh handles POST /auth/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var input refreshRequest
	if err := parseJSONBody(r, &input); err != nil || input.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "refreshToken is required", nil)
		return
	}

	result, err := s.accounts.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toAuthResponse(result))
}

// handleLogout handles POST /auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var input refreshRequest
	if err := parseJSONBody(r, &input); err != nil || input.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "refreshToken is required", nil)
		return
	}

	if err := s.accounts.Logout(r.Context(), input.RefreshToken); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
