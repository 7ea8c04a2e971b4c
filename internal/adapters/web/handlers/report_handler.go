package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lcalzada-xor/iotguard/internal/adapters/reporting"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// ScanReports reads single scans and history for export.
type ScanReports interface {
	Scan(ctx context.Context, id uint) (*domain.ScanRecord, error)
	History(ctx context.Context, filter domain.ScanFilter) ([]domain.ScanRecord, error)
}

// ReportHandler exports scan reports (PDF/JSON) and history (CSV/JSON).
type ReportHandler struct {
	Service  ScanReports
	Exporter *reporting.PDFExporter
}

func NewReportHandler(service ScanReports) *ReportHandler {
	return &ReportHandler{Service: service, Exporter: reporting.NewPDFExporter()}
}

// HandleScanReport renders one scan. Users can only fetch their own scans;
// anyone else's answer as not found.
func (h *ReportHandler) HandleScanReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	scan, err := h.Service.Scan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	user := caller(r)
	if scan.Username != user.Username && !user.IsTechnician() {
		writeError(w, fmt.Errorf("scan %d: %w", id, domain.ErrNotFound))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "pdf":
		out, err := h.Exporter.ExportScan(*scan)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=iotguard_scan_%d.pdf", scan.ID))
		w.WriteHeader(http.StatusOK)
		w.Write(out)
	case "json":
		writeJSON(w, http.StatusOK, scan)
	default:
		writeError(w, badRequest("format must be pdf or json"))
	}
}

// HandleExport downloads scan history with the same filters as the list endpoint.
func (h *ReportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := scanFilter(r, 1000, 10000)
	if err != nil {
		writeError(w, err)
		return
	}

	var export func(io.Writer, []domain.ScanRecord) error
	switch format := r.URL.Query().Get("format"); format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=iotguard_scans.csv")
		export = reporting.ExportScansCSV
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=iotguard_scans.json")
		export = reporting.ExportScansJSON
	default:
		writeError(w, badRequest("format must be csv or json"))
		return
	}

	scans, err := h.Service.History(r.Context(), filter)
	if err != nil {
		w.Header().Del("Content-Disposition")
		writeError(w, err)
		return
	}
	if err := export(w, scans); err != nil {
		slog.Warn("Scan export failed", "error", err)
	}
}
