package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/pipeline"
	"golang.org/x/sync/singleflight"
)

// IdempotencyHeader lets clients retry a scan request without a second dispatch.
const IdempotencyHeader = "Idempotency-Key"

// ScanRunner runs the scan pipeline.
type ScanRunner interface {
	Run(ctx context.Context, username, target string) (*pipeline.Result, error)
}

// ScanHistory reads persisted scans.
type ScanHistory interface {
	History(ctx context.Context, filter domain.ScanFilter) ([]domain.ScanRecord, error)
}

// ScanHandler starts scans and lists scan history.
type ScanHandler struct {
	Runner  ScanRunner
	History ScanHistory
	Timeout time.Duration

	results  *lru.Cache[string, *pipeline.Result]
	inflight singleflight.Group
}

func NewScanHandler(runner ScanRunner, history ScanHistory, timeout time.Duration, cacheSize int) (*ScanHandler, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, *pipeline.Result](cacheSize)
	if err != nil {
		return nil, err
	}
	return &ScanHandler{Runner: runner, History: history, Timeout: timeout, results: cache}, nil
}

type scanRequest struct {
	Target string `json:"target"`
}

// HandleRunScan runs one scan for the caller. With an Idempotency-Key the first
// completed result is replayed for every retry of the same key.
func (h *ScanHandler) HandleRunScan(w http.ResponseWriter, r *http.Request) {
	user := caller(r)
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("invalid request body"))
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" {
		res, err := h.run(r.Context(), user.Username, req.Target)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	cacheKey := user.Username + "\x00" + key
	if res, ok := h.results.Get(cacheKey); ok {
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, res)
		return
	}

	v, err, shared := h.inflight.Do(cacheKey, func() (interface{}, error) {
		if res, ok := h.results.Get(cacheKey); ok {
			return res, nil
		}
		res, err := h.run(context.WithoutCancel(r.Context()), user.Username, req.Target)
		if err != nil {
			return nil, err
		}
		h.results.Add(cacheKey, res)
		return res, nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if shared {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ScanHandler) run(ctx context.Context, username, target string) (*pipeline.Result, error) {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	return h.Runner.Run(ctx, username, target)
}

// HandleListScans lists scans. Technicians may query any user; everyone else
// only sees their own history.
func (h *ScanHandler) HandleListScans(w http.ResponseWriter, r *http.Request) {
	filter, err := scanFilter(r, 50, 500)
	if err != nil {
		writeError(w, err)
		return
	}

	scans, err := h.History.History(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scans": scans})
}

// scanFilter reads the history query parameters, scoping non-technicians to
// their own scans.
func scanFilter(r *http.Request, defLimit, maxLimit int) (domain.ScanFilter, error) {
	user := caller(r)
	q := r.URL.Query()

	limit, err := queryLimit(r, defLimit, maxLimit)
	if err != nil {
		return domain.ScanFilter{}, err
	}
	filter := domain.ScanFilter{Target: q.Get("target"), Limit: limit}

	filter.Username = user.Username
	if user.IsTechnician() {
		filter.Username = q.Get("username")
	}

	if v := q.Get("verdict"); v != "" {
		verdict, err := domain.ParseVerdict(v)
		if err != nil {
			return domain.ScanFilter{}, err
		}
		filter.Verdict = &verdict
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return domain.ScanFilter{}, badRequest("since must be RFC3339")
		}
		filter.Since = since
	}
	return filter, nil
}
