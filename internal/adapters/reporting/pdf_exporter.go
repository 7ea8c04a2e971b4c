package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// PDFExporter renders single-scan reports as PDF.
type PDFExporter struct {
	now func() time.Time
}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

// ExportScan generates the exposure report for one persisted scan.
func (e *PDFExporter) ExportScan(scan domain.ScanRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	e.addHeader(pdf, tr, scan)
	e.addVerdict(pdf, scan)
	e.addTierCounts(pdf, scan)
	e.addPortTable(pdf, tr, scan)
	e.addRecommendations(pdf, tr, scan)
	e.addFooter(pdf, scan)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, tr func(string) string, scan domain.ScanRecord) {
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 14, "IoT Exposure Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 14)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 8, tr("Target: "+scan.Target), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Requested by %s on %s", scan.Username, scan.Timestamp.Format("2006-01-02 15:04 MST"))), "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

func (e *PDFExporter) addVerdict(pdf *gofpdf.Fpdf, scan domain.ScanRecord) {
	r, g, b := verdictColor(scan.Verdict)
	pdf.SetFillColor(r, g, b)
	pdf.Rect(20, pdf.GetY(), 170, 26, "F")
	y := pdf.GetY()

	pdf.SetFont("Arial", "B", 26)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(25, y+4)
	pdf.CellFormat(90, 18, scan.Verdict.String(), "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 14)
	pdf.SetXY(120, y+8)
	pdf.CellFormat(65, 10, fmt.Sprintf("%d open ports", scan.OpenPortCount), "", 0, "R", false, 0, "")

	pdf.SetY(y + 31)
	pdf.Ln(4)
}

func verdictColor(v domain.Verdict) (r, g, b int) {
	switch v {
	case domain.VerdictHigh:
		return 220, 53, 69
	case domain.VerdictMedium:
		return 255, 149, 0
	case domain.VerdictLow:
		return 52, 199, 89
	default:
		return 150, 150, 150
	}
}

func tierColor(t domain.Tier) (r, g, b int) {
	switch t {
	case domain.TierHigh:
		return 220, 53, 69
	case domain.TierMedium:
		return 255, 149, 0
	case domain.TierLow:
		return 52, 199, 89
	default:
		return 120, 120, 120
	}
}

func (e *PDFExporter) addTierCounts(pdf *gofpdf.Fpdf, scan domain.ScanRecord) {
	counts := map[domain.Tier]int{}
	for _, o := range scan.Observations {
		counts[o.Tier]++
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Exposure Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	tiers := []domain.Tier{domain.TierHigh, domain.TierMedium, domain.TierLow, domain.TierUnknown}
	for i, t := range tiers {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, t.String()+" risk ports:", "", 0, "L", false, 0, "")

		r, g, b := tierColor(t)
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(35, 7, fmt.Sprintf("%d", counts[t]), "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}
	pdf.Ln(8)
}

func (e *PDFExporter) addPortTable(pdf *gofpdf.Fpdf, tr func(string) string, scan domain.ScanRecord) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Open Ports", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(scan.Observations) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No open ports detected", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(20, 8, "Port", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, "Service", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Risk", "1", 0, "C", true, 0, "")
	pdf.CellFormat(85, 8, "Recommendation", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, o := range scan.Observations {
		if pdf.GetY() > 265 {
			pdf.AddPage()
		}
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", o.Port), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, tr(truncate(o.Service, 22)), "1", 0, "L", false, 0, "")

		r, g, b := tierColor(o.Tier)
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(25, 7, o.Tier.String(), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(85, 7, tr(truncate(o.Recommendation, 52)), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
}

// addRecommendations spells out the full guidance for High risk ports.
func (e *PDFExporter) addRecommendations(pdf *gofpdf.Fpdf, tr func(string) string, scan domain.ScanRecord) {
	var high []domain.ClassifiedObservation
	for _, o := range scan.Observations {
		if o.Tier == domain.TierHigh {
			high = append(high, o)
		}
	}
	if len(high) == 0 {
		return
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Priority Actions", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, o := range high {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}
		pdf.SetFillColor(tierColor(o.Tier))
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(25, 6, fmt.Sprintf("Port %d", o.Port), "", 0, "C", true, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(0, 51, 102)
		pdf.CellFormat(0, 6, tr("  "+o.Service), "", 1, "L", false, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 5, tr(o.Recommendation), "", "L", false)
		pdf.Ln(3)
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, scan domain.ScanRecord) {
	pdf.SetY(-20)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	footer := fmt.Sprintf("Generated by iotguard on %s | Scan ID: %d", e.now().UTC().Format("2006-01-02 15:04"), scan.ID)
	pdf.CellFormat(0, 5, footer, "", 1, "C", false, 0, "")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
