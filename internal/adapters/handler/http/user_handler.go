package http

import (
	"errors"
	"net/http"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

type UserHandler struct {
	service     ports.UserService
	authService ports.AuthService
	log         logging.Logger
}

func NewUserHandler(service ports.UserService, authService ports.AuthService, log logging.Logger) *UserHandler {
	return &UserHandler{
		service:     service,
		authService: authService,
		log:         log,
	}
}

// GetMe godoc
// @Summary      Returns the authenticated user
// @Tags         users
// @Success      200
// @Failure      401
// @Router       /api/auth/me [get]
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

type maskedEmailResponse struct {
	MaskedEmail *string `json:"maskedEmail"`
}

func (h *UserHandler) GetEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	masked, err := h.service.GetMaskedEmail(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	resp := maskedEmailResponse{}
	if masked != "" {
		resp.MaskedEmail = &masked
	}
	writeData(w, http.StatusOK, resp)
}

type changeEmailRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewEmail        string `json:"newEmail"`
}

func (h *UserHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req changeEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" {
		writeFailure(w, http.StatusBadRequest, "Current password is required")
		return
	}

	masked, err := h.authService.ChangeEmail(r.Context(), ports.ChangeEmailInput{
		UserID:          userID,
		CurrentPassword: req.CurrentPassword,
		NewEmail:        req.NewEmail,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeFailure(w, http.StatusUnauthorized, "Current password is incorrect")
			return
		}
		writeError(w, r, h.log, err)
		return
	}
	writeData(w, http.StatusOK, maskedEmailResponse{MaskedEmail: &masked})
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.SearchByUsername(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeData(w, http.StatusOK, user)
}
