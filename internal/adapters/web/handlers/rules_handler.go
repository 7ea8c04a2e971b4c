package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/rules"
)

// RuleTable is the read side of the risk rule table.
type RuleTable interface {
	Classify(port uint16) (domain.Tier, string)
	Lookup(port uint16) (domain.Rule, bool)
	Rules() []domain.Rule
	Version() string
}

type RulesHandler struct {
	Table RuleTable
}

func NewRulesHandler(table RuleTable) *RulesHandler {
	return &RulesHandler{Table: table}
}

type ruleResponse struct {
	Port           uint16      `json:"port"`
	Tier           domain.Tier `json:"tier"`
	Recommendation string      `json:"recommendation"`
	Known          bool        `json:"known"`
	ReferenceURL   string      `json:"reference_url"`
}

// HandleLookup classifies a single port. Every port in range has an answer.
func (h *RulesHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["port"])
	if err != nil {
		writeError(w, badRequest("port must be an integer"))
		return
	}
	obs, err := domain.NewObservation(n, "")
	if err != nil {
		writeError(w, err)
		return
	}
	_, known := h.Table.Lookup(obs.Port)
	tier, rec := h.Table.Classify(obs.Port)
	writeJSON(w, http.StatusOK, ruleResponse{
		Port:           obs.Port,
		Tier:           tier,
		Recommendation: rec,
		Known:          known,
		ReferenceURL:   rules.ReferenceURL(obs.Port),
	})
}

func (h *RulesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": h.Table.Version(),
		"rules":   h.Table.Rules(),
	})
}
