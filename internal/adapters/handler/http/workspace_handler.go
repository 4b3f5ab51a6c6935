package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

type WorkspaceHandler struct {
	workspaces ports.WorkspaceService
	items      ports.ItemService
	log        logging.Logger
}

func NewWorkspaceHandler(workspaces ports.WorkspaceService, items ports.ItemService, log logging.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces: workspaces,
		items:      items,
		log:        log,
	}
}

// List godoc
// @Summary      Lists the workspaces the user belongs to
// @Tags         workspaces
// @Success      200
// @Failure      401
// @Router       /api/workspaces [get]
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	memberships, err := h.workspaces.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if memberships == nil {
		memberships = []domain.Membership{}
	}
	writeData(w, http.StatusOK, memberships)
}

// Summary godoc
// @Summary      Returns the balance cards, cycle and items of a workspace
// @Description  Archives the previous cycle first when it is complete.
// @Tags         workspaces
// @Param        id   path      string  true  "Workspace ID"
// @Success      200
// @Failure      404
// @Router       /api/workspaces/{id} [get]
func (h *WorkspaceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.workspaceRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.workspaces.Summary(r.Context(), userID, workspaceID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if summary.Items == nil {
		summary.Items = []domain.Item{}
	}
	writeData(w, http.StatusOK, summary)
}

type balanceRequest struct {
	Balance *int64 `json:"balance"`
}

func (h *WorkspaceHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.workspaceRequest(w, r)
	if !ok {
		return
	}

	var req balanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Balance == nil {
		writeFailure(w, http.StatusBadRequest, "Balance is required")
		return
	}

	if err := h.workspaces.SetBalance(r.Context(), userID, workspaceID, *req.Balance); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w)
}

func (h *WorkspaceHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.workspaceRequest(w, r)
	if !ok {
		return
	}

	cycles, err := h.workspaces.ListCycles(r.Context(), userID, workspaceID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if cycles == nil {
		cycles = []domain.CompletedCycle{}
	}
	writeData(w, http.StatusOK, cycles)
}

type shareRequest struct {
	Username   string            `json:"username"`
	Permission domain.Permission `json:"permission"`
}

func (h *WorkspaceHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.workspaceRequest(w, r)
	if !ok {
		return
	}

	var req shareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.workspaces.Share(r.Context(), ports.ShareWorkspaceInput{
		OwnerID:     userID,
		WorkspaceID: workspaceID,
		Username:    req.Username,
		Permission:  req.Permission,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true})
}

type createItemRequest struct {
	Type       domain.ItemType `json:"type"`
	Label      string          `json:"label"`
	Amount     int64           `json:"amount"`
	DayOfMonth int             `json:"dayOfMonth"`
}

func (h *WorkspaceHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.workspaceRequest(w, r)
	if !ok {
		return
	}

	var req createItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.items.Create(r.Context(), ports.CreateItemInput{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Type:        req.Type,
		Label:       req.Label,
		Amount:      req.Amount,
		DayOfMonth:  req.DayOfMonth,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeData(w, http.StatusCreated, item)
}

type updateItemRequest struct {
	Label      *string `json:"label"`
	Amount     *int64  `json:"amount"`
	DayOfMonth *int    `json:"dayOfMonth"`
	IsPaid     *bool   `json:"isPaid"`
}

func (h *WorkspaceHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.workspaceRequest(w, r)
	if !ok {
		return
	}
	itemID, ok := parseID(w, r, "itemID", "Invalid item id")
	if !ok {
		return
	}

	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.items.Update(r.Context(), ports.UpdateItemInput{
		UserID:      userID,
		WorkspaceID: workspaceID,
		ItemID:      itemID,
		Label:       req.Label,
		Amount:      req.Amount,
		DayOfMonth:  req.DayOfMonth,
		IsPaid:      req.IsPaid,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeData(w, http.StatusOK, item)
}

func (h *WorkspaceHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, workspaceID, ok := h.workspaceRequest(w, r)
	if !ok {
		return
	}
	itemID, ok := parseID(w, r, "itemID", "Invalid item id")
	if !ok {
		return
	}

	if err := h.items.Delete(r.Context(), userID, workspaceID, itemID); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeOK(w)
}

func (h *WorkspaceHandler) workspaceRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
		return uuid.Nil, uuid.Nil, false
	}
	workspaceID, ok := parseID(w, r, "id", "Invalid workspace id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, workspaceID, true
}

func parseID(w http.ResponseWriter, r *http.Request, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, message)
		return uuid.Nil, false
	}
	return id, true
}
