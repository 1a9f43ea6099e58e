package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/pharma-exchange/internal/access"
	"github.com/example/pharma-exchange/internal/api/middleware"
	"github.com/example/pharma-exchange/internal/auth"
)

// UserStore is the account storage the auth handlers need. A missing
// user is reported as (nil, nil).
type UserStore interface {
	CreateUser(ctx context.Context, u *access.User) error
	UserByID(ctx context.Context, id string) (*access.User, error)
	UserByUsername(ctx context.Context, username string) (*access.User, error)
}

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	users      UserStore
	jwtService *auth.JWTService
}

func NewAuthHandlers(users UserStore, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		users:      users,
		jwtService: jwtService,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token   string       `json:"token,omitempty"`
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(u *access.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// Register handles account registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" {
		respondJSONError(w, "Username is required", http.StatusBadRequest)
		return
	}

	role := access.Role(req.Role)
	if !role.Valid() {
		respondJSONError(w, "Role must be pharmacist or technician", http.StatusBadRequest)
		return
	}

	existing, err := h.users.UserByUsername(r.Context(), req.Username)
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		respondJSONError(w, "Username already registered", http.StatusConflict)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if err == auth.ErrPasswordTooShort {
			respondJSONError(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	newUser := &access.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := h.users.CreateUser(r.Context(), newUser); err != nil {
		respondJSONError(w, err.Error(), http.StatusConflict)
		return
	}

	token := h.setAuthCookies(w, newUser, r)

	respondJSON(w, http.StatusCreated, AuthResponse{
		Token:   token,
		User:    userResponse(newUser),
		Message: "Registration successful",
	})
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userModel, err := h.users.UserByUsername(r.Context(), req.Username)
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if userModel == nil {
		respondJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if !auth.CheckPassword(req.Password, userModel.PasswordHash) {
		respondJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	token := h.setAuthCookies(w, userModel, r)

	respondJSON(w, http.StatusOK, AuthResponse{
		Token:   token,
		User:    userResponse(userModel),
		Message: "Login successful",
	})
}

// Logout clears the auth cookies
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Refresh exchanges a valid refresh token for fresh cookies
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	userModel, err := h.users.UserByID(r.Context(), userID)
	if err != nil || userModel == nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "User not found", http.StatusUnauthorized)
		return
	}

	token := h.setAuthCookies(w, userModel, r)

	respondJSON(w, http.StatusOK, map[string]string{
		"token":   token,
		"message": "Token refreshed",
	})
}

// Me returns the current authenticated user's information
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userModel, err := h.users.UserByID(r.Context(), claims.UserID)
	if err != nil || userModel == nil {
		respondJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, userResponse(userModel))
}

// Helper methods

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, u *access.User, r *http.Request) string {
	accessToken, accessExpiry, _ := h.jwtService.GenerateAccessToken(u.ID, u.Username, string(u.Role))
	refreshToken, refreshExpiry, _ := h.jwtService.GenerateRefreshToken(u.ID)

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/auth/refresh",
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	return accessToken
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/auth/refresh",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
