package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockScanRepository struct {
	mock.Mock
}

func (m *MockScanRepository) InsertScan(ctx context.Context, scan domain.ScanRecord) (uint, error) {
	args := m.Called(ctx, scan)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockScanRepository) GetScan(ctx context.Context, id uint) (*domain.ScanRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*domain.ScanRecord), args.Error(1)
}

func (m *MockScanRepository) ListScans(ctx context.Context, filter domain.ScanFilter) ([]domain.ScanRecord, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.ScanRecord), args.Error(1)
}

func (m *MockScanRepository) ListLabeledPorts(ctx context.Context) ([]domain.LabeledPort, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.LabeledPort), args.Error(1)
}

// monday of a known week: 2025-03-03 is a Monday, 2025-03-09 a Sunday.
var monday = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func scan(target string, v domain.Verdict, at time.Time) domain.ScanRecord {
	return domain.ScanRecord{Target: target, Verdict: v, Timestamp: at}
}

func TestWeekEnding(t *testing.T) {
	sunday := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, sunday, weekEnding(monday))
	assert.Equal(t, sunday, weekEnding(time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, sunday.AddDate(0, 0, 7), weekEnding(time.Date(2025, 3, 10, 0, 0, 1, 0, time.UTC)))
}

func TestWeeklyTrend(t *testing.T) {
	scans := []domain.ScanRecord{
		scan("a", domain.VerdictHigh, monday),
		scan("b", domain.VerdictHigh, monday.Add(24*time.Hour)),
		scan("c", domain.VerdictLow, monday),
		scan("d", domain.VerdictUnknown, monday),
		scan("a", domain.VerdictHigh, monday.AddDate(0, 0, 7)),
	}
	trend := WeeklyTrend(scans)
	require.Len(t, trend, 3)
	assert.Equal(t, domain.VerdictHigh, trend[0].Verdict)
	assert.Equal(t, 2, trend[0].Count)
	assert.Equal(t, domain.VerdictLow, trend[1].Verdict)
	assert.Equal(t, 1, trend[2].Count)
	assert.True(t, trend[2].WeekEnding.After(trend[0].WeekEnding))
}

func TestForecastNextWeek(t *testing.T) {
	var scans []domain.ScanRecord
	// High: 1, 2, 3 scans across three weeks -> next week 4.
	for w, n := range []int{1, 2, 3} {
		for i := 0; i < n; i++ {
			scans = append(scans, scan("h", domain.VerdictHigh, monday.AddDate(0, 0, 7*w)))
		}
	}
	// Low: 5, 3, 1 -> projects to -1, clamped to 0.
	for w, n := range []int{5, 3, 1} {
		for i := 0; i < n; i++ {
			scans = append(scans, scan("l", domain.VerdictLow, monday.AddDate(0, 0, 7*w)))
		}
	}
	// Medium: only two weeks.
	scans = append(scans, scan("m", domain.VerdictMedium, monday), scan("m", domain.VerdictMedium, monday.AddDate(0, 0, 7)))

	fc := ForecastNextWeek(WeeklyTrend(scans))
	require.Len(t, fc, 3)

	assert.Equal(t, domain.VerdictHigh, fc[0].Verdict)
	require.NotNil(t, fc[0].Predicted)
	assert.Equal(t, 4, *fc[0].Predicted)

	assert.Equal(t, domain.VerdictMedium, fc[1].Verdict)
	assert.Nil(t, fc[1].Predicted)
	assert.Equal(t, "Insufficient data", fc[1].Note)

	assert.Equal(t, domain.VerdictLow, fc[2].Verdict)
	require.NotNil(t, fc[2].Predicted)
	assert.Equal(t, 0, *fc[2].Predicted)
}

func TestFitLine_Flat(t *testing.T) {
	slope, intercept := fitLine([]float64{2, 2, 2, 2})
	assert.InDelta(t, 0, slope, 1e-9)
	assert.InDelta(t, 2, intercept, 1e-9)
}

func TestTopHighRiskTargets(t *testing.T) {
	var scans []domain.ScanRecord
	counts := map[string]int{"10.0.0.1": 4, "10.0.0.2": 2, "10.0.0.3": 2, "10.0.0.4": 1, "10.0.0.5": 1, "10.0.0.6": 3}
	for target, n := range counts {
		for i := 0; i < n; i++ {
			scans = append(scans, scan(target, domain.VerdictHigh, monday))
		}
	}
	scans = append(scans, scan("10.0.0.9", domain.VerdictMedium, monday))

	top := TopHighRiskTargets(scans, 5)
	require.Len(t, top, 5)
	assert.Equal(t, TargetCount{"10.0.0.1", 4}, top[0])
	assert.Equal(t, TargetCount{"10.0.0.6", 3}, top[1])
	assert.Equal(t, TargetCount{"10.0.0.2", 2}, top[2])
	assert.Equal(t, TargetCount{"10.0.0.3", 2}, top[3])
	assert.Equal(t, "10.0.0.4", top[4].Target)
}

func TestService_Summary(t *testing.T) {
	repo := new(MockScanRepository)
	svc := NewService(repo)
	scans := []domain.ScanRecord{
		scan("a", domain.VerdictHigh, monday),
		scan("b", domain.VerdictLow, monday.Add(time.Hour)),
		scan("c", domain.VerdictLow, monday.AddDate(0, 0, 1)),
	}
	repo.On("ListScans", mock.Anything, domain.ScanFilter{Username: "alice"}).Return(scans, nil)

	sum, err := svc.Summary(context.Background(), domain.ScanFilter{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.ByVerdict[domain.VerdictLow])
	assert.Equal(t, []DayCount{{"2025-03-03", 2}, {"2025-03-04", 1}}, sum.Daily)
	require.NotNil(t, sum.Latest)
	assert.Equal(t, "c", sum.Latest.Target)
}
