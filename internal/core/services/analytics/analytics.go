package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// minForecastPoints is the number of weekly points a verdict needs before a
// trend line is fitted.
const minForecastPoints = 3

const insufficientData = "Insufficient data"

// Summary is the headline view of scan history.
type Summary struct {
	Total     int                    `json:"total"`
	ByVerdict map[domain.Verdict]int `json:"by_verdict"`
	Daily     []DayCount             `json:"daily"`
	Latest    *domain.ScanRecord     `json:"latest,omitempty"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// TrendPoint counts scans of one verdict in the week ending on WeekEnding (Sunday).
type TrendPoint struct {
	WeekEnding time.Time      `json:"week_ending"`
	Verdict    domain.Verdict `json:"verdict"`
	Count      int            `json:"count"`
}

// Forecast is the projected scan count for next week. Predicted is nil when
// there are too few weekly points.
type Forecast struct {
	Verdict   domain.Verdict `json:"verdict"`
	Predicted *int           `json:"predicted"`
	Note      string         `json:"note,omitempty"`
}

type TargetCount struct {
	Target        string `json:"target"`
	HighRiskCount int    `json:"high_risk_count"`
}

// Service answers technician dashboard queries over the scan history.
type Service struct {
	scans ports.ScanRepository
}

func NewService(scans ports.ScanRepository) *Service {
	return &Service{scans: scans}
}

// History lists scans matching filter, newest first.
func (s *Service) History(ctx context.Context, filter domain.ScanFilter) ([]domain.ScanRecord, error) {
	return s.scans.ListScans(ctx, filter)
}

// Scan returns one scan with its observations.
func (s *Service) Scan(ctx context.Context, id uint) (*domain.ScanRecord, error) {
	return s.scans.GetScan(ctx, id)
}

func (s *Service) Summary(ctx context.Context, filter domain.ScanFilter) (Summary, error) {
	scans, err := s.scans.ListScans(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(scans), nil
}

func (s *Service) Trend(ctx context.Context) ([]TrendPoint, error) {
	scans, err := s.scans.ListScans(ctx, domain.ScanFilter{})
	if err != nil {
		return nil, err
	}
	return WeeklyTrend(scans), nil
}

func (s *Service) Forecast(ctx context.Context) ([]Forecast, error) {
	trend, err := s.Trend(ctx)
	if err != nil {
		return nil, err
	}
	return ForecastNextWeek(trend), nil
}

func (s *Service) TopTargets(ctx context.Context, n int) ([]TargetCount, error) {
	scans, err := s.scans.ListScans(ctx, domain.ScanFilter{})
	if err != nil {
		return nil, err
	}
	return TopHighRiskTargets(scans, n), nil
}

// Summarize counts scans by verdict and by day.
func Summarize(scans []domain.ScanRecord) Summary {
	sum := Summary{Total: len(scans), ByVerdict: make(map[domain.Verdict]int)}
	days := make(map[string]int)
	for i := range scans {
		sc := scans[i]
		sum.ByVerdict[sc.Verdict]++
		days[sc.Timestamp.UTC().Format("2006-01-02")]++
		if sum.Latest == nil || sc.Timestamp.After(sum.Latest.Timestamp) {
			sum.Latest = &scans[i]
		}
	}
	for d, c := range days {
		sum.Daily = append(sum.Daily, DayCount{Day: d, Count: c})
	}
	sort.Slice(sum.Daily, func(i, j int) bool { return sum.Daily[i].Day < sum.Daily[j].Day })
	return sum
}

// weekEnding returns the Sunday (UTC midnight) closing t's week.
func weekEnding(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, (7-int(day.Weekday()))%7)
}

// WeeklyTrend buckets scored scans per week and verdict. Weeks with no scan
// of a verdict produce no point for it. Ordered by week, then severity.
func WeeklyTrend(scans []domain.ScanRecord) []TrendPoint {
	type key struct {
		week    time.Time
		verdict domain.Verdict
	}
	counts := make(map[key]int)
	for _, sc := range scans {
		if sc.Verdict == domain.VerdictUnknown {
			continue
		}
		counts[key{weekEnding(sc.Timestamp), sc.Verdict}]++
	}
	out := make([]TrendPoint, 0, len(counts))
	for k, c := range counts {
		out = append(out, TrendPoint{WeekEnding: k.week, Verdict: k.verdict, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekEnding.Equal(out[j].WeekEnding) {
			return out[i].WeekEnding.Before(out[j].WeekEnding)
		}
		return out[i].Verdict > out[j].Verdict
	})
	return out
}

// ForecastNextWeek fits a least-squares line through each verdict's weekly
// counts (x = 0..n-1) and evaluates it at x = n, rounded half-to-even and
// clamped at zero.
func ForecastNextWeek(trend []TrendPoint) []Forecast {
	series := make(map[domain.Verdict][]float64)
	for _, p := range trend {
		series[p.Verdict] = append(series[p.Verdict], float64(p.Count))
	}

	out := make([]Forecast, 0, 3)
	for _, v := range domain.Verdicts() {
		ys := series[v]
		if len(ys) < minForecastPoints {
			out = append(out, Forecast{Verdict: v, Note: insufficientData})
			continue
		}
		slope, intercept := fitLine(ys)
		next := int(math.Max(0, math.RoundToEven(slope*float64(len(ys))+intercept)))
		out = append(out, Forecast{Verdict: v, Predicted: &next})
	}
	return out
}

func fitLine(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	var sx, sy, sxx, sxy float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, sy / n
	}
	slope = (n*sxy - sx*sy) / den
	intercept = (sy - slope*sx) / n
	return slope, intercept
}

// TopHighRiskTargets ranks targets by High Risk scan count, ties by target name.
func TopHighRiskTargets(scans []domain.ScanRecord, n int) []TargetCount {
	counts := make(map[string]int)
	for _, sc := range scans {
		if sc.Verdict == domain.VerdictHigh {
			counts[sc.Target]++
		}
	}
	out := make([]TargetCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TargetCount{Target: t, HighRiskCount: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HighRiskCount != out[j].HighRiskCount {
			return out[i].HighRiskCount > out[j].HighRiskCount
		}
		return out[i].Target < out[j].Target
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
