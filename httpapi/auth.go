package httpapi

import (
	"net/http"
	"strings"

	"github.com/opsml/registry/auth"
	"github.com/opsml/registry/opsmlerr"
)

// handleLogin implements POST /auth/api/login: spec.md §6 carries the
// credential as the Username/Password headers rather than a JSON body,
// mirroring the teacher's header-based basic auth convention.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.users == nil || s.tokens == nil {
		writeError(w, opsmlerr.New(opsmlerr.AuthErr, "authentication is not configured"))
		return
	}
	username := r.Header.Get("Username")
	password := r.Header.Get("Password")
	if username == "" || password == "" {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "Username and Password headers are required"))
		return
	}

	user, err := s.users.GetByUsername(r.Context(), username)
	if err != nil {
		writeError(w, opsmlerr.New(opsmlerr.AuthErr, "invalid credentials"))
		return
	}
	if !user.Active || !auth.VerifyPassword(user.PasswordHash, password) {
		writeError(w, opsmlerr.New(opsmlerr.AuthErr, "invalid credentials"))
		return
	}

	claims := auth.Claims{Username: user.Username, Permissions: user.Permissions, GroupPermissions: user.GroupPermissions}
	token, err := s.tokens.IssueAccessToken(claims, s.accessTTL)
	if err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.AuthErr, err, "issue access token"))
		return
	}
	refresh, err := s.tokens.IssueRefreshToken(claims, s.refreshTTL)
	if err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.AuthErr, err, "issue refresh token"))
		return
	}
	if err := s.users.UpdateRefreshToken(r.Context(), username, refresh); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// handleRefresh implements POST /auth/api/refresh: the caller presents the
// refresh token as a bearer credential and receives a fresh access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.users == nil || s.tokens == nil {
		writeError(w, opsmlerr.New(opsmlerr.AuthErr, "authentication is not configured"))
		return
	}
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		writeError(w, opsmlerr.New(opsmlerr.AuthErr, "missing bearer token"))
		return
	}
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.AuthErr, err, "verify refresh token"))
		return
	}
	user, err := s.users.GetByUsername(r.Context(), claims.Username)
	if err != nil || user.RefreshToken != raw {
		writeError(w, opsmlerr.New(opsmlerr.AuthErr, "refresh token does not match the current session"))
		return
	}
	token, err := s.tokens.IssueAccessToken(claims, s.accessTTL)
	if err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.AuthErr, err, "issue access token"))
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}
