package handlers

import (
	"context"
	"net/http"

	"github.com/lcalzada-xor/iotguard/internal/core/services/riskmodel"
)

// ModelHandler exposes the risk model lifecycle.
type ModelHandler struct {
	Info    func() riskmodel.Info
	Retrain func(ctx context.Context, actor string) error
}

func NewModelHandler(info func() riskmodel.Info, retrain func(ctx context.Context, actor string) error) *ModelHandler {
	return &ModelHandler{Info: info, Retrain: retrain}
}

func (h *ModelHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Info())
}

// HandleRetrain refits the model from history. Insufficient history answers
// 409 with the unchanged model state.
func (h *ModelHandler) HandleRetrain(w http.ResponseWriter, r *http.Request) {
	if err := h.Retrain(r.Context(), caller(r).Username); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Info())
}
