package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// ExportScansJSON writes scans as a JSON array
func ExportScansJSON(w io.Writer, scans []domain.ScanRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if scans == nil {
		scans = []domain.ScanRecord{}
	}
	return encoder.Encode(scans)
}

// ExportScansCSV writes scan history as CSV with headers
func ExportScansCSV(w io.Writer, scans []domain.ScanRecord) error {
	writer := csv.NewWriter(w)

	headers := []string{"ID", "Timestamp", "Username", "Target", "OpenPorts", "Verdict", "Summary"}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, s := range scans {
		row := []string{
			fmt.Sprintf("%d", s.ID),
			s.Timestamp.Format(time.RFC3339),
			s.Username,
			s.Target,
			fmt.Sprintf("%d", s.OpenPortCount),
			s.Verdict.String(),
			s.RiskSummary,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
