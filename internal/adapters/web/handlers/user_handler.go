package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// Users is the account management surface of the auth service.
type Users interface {
	CreateUser(ctx context.Context, actor, username string, role domain.Role) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// UserHandler provisions accounts. Admin only.
type UserHandler struct {
	Service Users
}

func NewUserHandler(service Users) *UserHandler {
	return &UserHandler{Service: service}
}

type userRequest struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("invalid request body"))
		return
	}
	user, err := h.Service.CreateUser(r.Context(), caller(r).Username, req.Username, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}
