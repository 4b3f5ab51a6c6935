package http

import (
	"net/http"
	"time"

	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

// SessionCookie describes the httpOnly cookie carrying the session token.
type SessionCookie struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      SessionCookie
	log         logging.Logger
}

func NewAuthHandler(authService ports.AuthService, cookie SessionCookie, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		log:         log,
	}
}

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Email       string `json:"email"`
}

// Register godoc
// @Summary      Creates an account
// @Description  Creates the user and its default workspace and starts a session.
// @Tags         auth
// @Accept       json
// @Success      200
// @Failure      400
// @Failure      409
// @Failure      429
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.authService.Register(r.Context(), ports.RegisterInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Email:       req.Email,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeData(w, http.StatusOK, result.User)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login godoc
// @Summary      Starts a session
// @Tags         auth
// @Accept       json
// @Success      200
// @Failure      400
// @Failure      401
// @Failure      429
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	result, err := h.authService.Login(r.Context(), ports.LoginInput{Username: req.Username, Password: req.Password})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeData(w, http.StatusOK, result.User)
}

// Logout godoc
// @Summary      Logs the autheticated user out
// @Description  Invalidates every session of the user and clears the session cookie
// @Tags         auth
// @Success      200
// @Failure      401
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := h.authService.Logout(r.Context(), userID); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.clearSessionCookie(w)
	writeOK(w)
}

type sessionResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cookie.Name)
	if err != nil || cookie.Value == "" {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	session, err := h.authService.CheckSession(r.Context(), cookie.Value)
	if err != nil {
		h.clearSessionCookie(w)
		writeError(w, r, h.log, err)
		return
	}

	writeData(w, http.StatusOK, sessionResponse{ID: session.UserID.String(), Username: session.Username})
}

type forgotPasswordRequest struct {
	Username string `json:"username"`
}

// ForgotPassword godoc
// @Summary      Requests a password reset email
// @Description  Always succeeds for a non-empty username so accounts cannot be enumerated.
// @Tags         auth
// @Accept       json
// @Success      200
// @Failure      400
// @Failure      429
// @Router       /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Username); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeFailure(w, http.StatusBadRequest, "Reset token is required")
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
