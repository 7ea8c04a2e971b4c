package handlers

import (
	"context"
	"net/http"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// Inbox is the notification and technician alert lifecycle.
type Inbox interface {
	List(ctx context.Context, username string, unreadOnly bool) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, username string) (int64, error)
	MarkRead(ctx context.Context, actor string, id uint) (bool, error)
	MarkAllRead(ctx context.Context, username string) (int64, error)
	Delete(ctx context.Context, actor string, id uint) error
	ListAlerts(ctx context.Context, unreadOnly bool) ([]domain.TechnicianAlert, error)
	UnreadAlertCount(ctx context.Context) (int64, error)
	MarkAlertRead(ctx context.Context, actor string, id uint) (bool, error)
	MarkAllAlertsRead(ctx context.Context, actor string) (int64, error)
}

// InboxHandler serves per-user notifications and the technician alert queue.
type InboxHandler struct {
	Service Inbox
}

func NewInboxHandler(service Inbox) *InboxHandler {
	return &InboxHandler{Service: service}
}

func unreadOnly(r *http.Request) bool {
	v := r.URL.Query().Get("unread")
	return v == "true" || v == "1"
}

func (h *InboxHandler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context(), caller(r).Username, unreadOnly(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": list})
}

func (h *InboxHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.UnreadCount(r.Context(), caller(r).Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": n})
}

func (h *InboxHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	changed, err := h.Service.MarkRead(r.Context(), caller(r).Username, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "changed": changed})
}

func (h *InboxHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.MarkAllRead(r.Context(), caller(r).Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

func (h *InboxHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Service.Delete(r.Context(), caller(r).Username, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InboxHandler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Service.ListAlerts(r.Context(), unreadOnly(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (h *InboxHandler) HandleUnreadAlertCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.UnreadAlertCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": n})
}

func (h *InboxHandler) HandleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	changed, err := h.Service.MarkAlertRead(r.Context(), caller(r).Username, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "changed": changed})
}

func (h *InboxHandler) HandleMarkAllAlertsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.MarkAllAlertsRead(r.Context(), caller(r).Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}
