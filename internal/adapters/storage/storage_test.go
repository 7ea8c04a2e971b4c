package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupDB opens a fresh SQLite file per test.
func setupDB(t *testing.T) *SQLAdapter {
	t.Helper()
	adapter, err := Open(Options{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "iotguard.db")})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func classified(port uint16, service string, tier domain.Tier) domain.ClassifiedObservation {
	return domain.ClassifiedObservation{
		Observation:    domain.Observation{Port: port, Service: service},
		Tier:           tier,
		Recommendation: "rec " + service,
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(Options{Driver: "oracle"})
	assert.Error(t, err)
}

func TestScanRoundTrip(t *testing.T) {
	a := setupDB(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	scan := domain.NewScanRecord("alice", "192.168.1.20", []domain.ClassifiedObservation{
		classified(80, "http", domain.TierMedium),
		classified(21, "ftp", domain.TierHigh),
		classified(31337, "elite", domain.TierUnknown),
	}, domain.VerdictHigh, at)

	id, err := a.InsertScan(ctx, scan)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := a.GetScan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, domain.VerdictHigh, got.Verdict)
	assert.Equal(t, 3, got.OpenPortCount)
	assert.Equal(t, "Detected 3 open ports. AI Risk: High Risk", got.RiskSummary)
	require.Len(t, got.Observations, 3)
	// Order of the scan is kept.
	assert.Equal(t, uint16(80), got.Observations[0].Port)
	assert.Equal(t, uint16(21), got.Observations[1].Port)
	assert.Equal(t, domain.TierUnknown, got.Observations[2].Tier)
	assert.Equal(t, "rec ftp", got.Observations[1].Recommendation)
}

func TestGetScan_NotFound(t *testing.T) {
	a := setupDB(t)
	_, err := a.GetScan(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListScans_Filters(t *testing.T) {
	a := setupDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	insert := func(user, target string, v domain.Verdict, day int) {
		s := domain.NewScanRecord(user, target, []domain.ClassifiedObservation{classified(22, "ssh", domain.TierMedium)}, v, base.AddDate(0, 0, day))
		_, err := a.InsertScan(ctx, s)
		require.NoError(t, err)
	}
	insert("alice", "10.0.0.1", domain.VerdictLow, 0)
	insert("alice", "10.0.0.2", domain.VerdictHigh, 1)
	insert("bob", "10.0.0.1", domain.VerdictHigh, 2)

	all, err := a.ListScans(ctx, domain.ScanFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bob", all[0].Username, "newest first")
	assert.Len(t, all[0].Observations, 1)

	alice, err := a.ListScans(ctx, domain.ScanFilter{Username: "alice"})
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	high := domain.VerdictHigh
	highs, err := a.ListScans(ctx, domain.ScanFilter{Verdict: &high})
	require.NoError(t, err)
	assert.Len(t, highs, 2)

	recent, err := a.ListScans(ctx, domain.ScanFilter{Since: base.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	byTarget, err := a.ListScans(ctx, domain.ScanFilter{Target: "10.0.0.1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byTarget, 1)
	assert.Equal(t, "bob", byTarget[0].Username)
}

func TestListLabeledPorts(t *testing.T) {
	a := setupDB(t)
	ctx := context.Background()

	s := domain.NewScanRecord("alice", "cam.local", []domain.ClassifiedObservation{
		classified(23, "telnet", domain.TierHigh),
		classified(443, "https", domain.TierLow),
	}, domain.VerdictMedium, time.Now())
	_, err := a.InsertScan(ctx, s)
	require.NoError(t, err)

	labeled, err := a.ListLabeledPorts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.LabeledPort{
		{Port: 23, Tier: domain.TierHigh},
		{Port: 443, Tier: domain.TierLow},
	}, labeled)
}

func TestNotificationLifecycle(t *testing.T) {
	a := setupDB(t)
	ctx := context.Background()
	scanID := uint(5)

	n, err := domain.NewNotification("alice", domain.NotificationHighRisk, "subject", "body", &scanID, time.Now())
	require.NoError(t, err)
	require.NoError(t, a.InsertNotification(ctx, n))
	assert.NotZero(t, n.ID)

	other, err := domain.NewNotification("bob", domain.NotificationScanComplete, "s", "b", nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, a.InsertNotification(ctx, other))

	count, err := a.CountUnreadNotifications(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	first := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	changed, err := a.MarkNotificationRead(ctx, n.ID, first)
	require.NoError(t, err)
	assert.True(t, changed)

	// A second mark is a no-op and keeps the first read time.
	changed, err = a.MarkNotificationRead(ctx, n.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	list, err := a.ListNotifications(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)
	require.NotNil(t, list[0].ReadAt)
	assert.True(t, first.Equal(*list[0].ReadAt))
	require.NotNil(t, list[0].RelatedScanID)
	assert.Equal(t, scanID, *list[0].RelatedScanID)

	unread, err := a.ListNotifications(ctx, "alice", true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, err = a.MarkNotificationRead(ctx, 999, first)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	marked, err := a.MarkAllNotificationsRead(ctx, "bob", first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
	marked, err = a.MarkAllNotificationsRead(ctx, "bob", first)
	require.NoError(t, err)
	assert.Zero(t, marked)

	require.NoError(t, a.DeleteNotification(ctx, n.ID))
	assert.ErrorIs(t, a.DeleteNotification(ctx, n.ID), domain.ErrNotFound)
}

func TestTechAlertLifecycle(t *testing.T) {
	a := setupDB(t)
	ctx := context.Background()

	scan := domain.NewScanRecord("alice", "10.0.0.9", []domain.ClassifiedObservation{
		classified(21, "ftp", domain.TierHigh),
		classified(23, "telnet", domain.TierHigh),
	}, domain.VerdictHigh, time.Now())
	scan.ID = 3
	alert := domain.NewTechnicianAlert(scan, scan.Observations, time.Now())
	require.NoError(t, a.InsertTechAlert(ctx, alert))
	assert.NotZero(t, alert.ID)

	alerts, err := a.ListTechAlerts(ctx, true)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, []uint16{21, 23}, alerts[0].HighRiskPorts)
	assert.Equal(t, "21, 23", alerts[0].FormatPorts())
	require.Len(t, alerts[0].PortDetails, 2)
	assert.Equal(t, "telnet", alerts[0].PortDetails[1].Service)
	assert.Equal(t, domain.VerdictHigh, alerts[0].RiskLevel)
	assert.Equal(t, uint(3), alerts[0].ScanID)

	at := time.Now()
	changed, err := a.MarkTechAlertRead(ctx, alert.ID, at)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = a.MarkTechAlertRead(ctx, alert.ID, at)
	require.NoError(t, err)
	assert.False(t, changed)

	count, err := a.CountUnreadTechAlerts(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = a.MarkTechAlertRead(ctx, 77, at)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	marked, err := a.MarkAllTechAlertsRead(ctx, at)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestModelRoundTrip(t *testing.T) {
	a := setupDB(t)
	ctx := context.Background()

	none, err := a.LoadModel(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	state := domain.ModelState{
		FeatureScale: 65535,
		Classes:      []domain.Tier{domain.TierLow, domain.TierHigh},
		Nodes: []domain.TreeNode{
			{Threshold: 0.001, Left: 1, Right: 2},
			{Leaf: true, Class: 1},
			{Leaf: true, Class: 0},
		},
		MaxDepth:    3,
		Seed:        42,
		SampleCount: 9,
		TrainedAt:   time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, a.SaveModel(ctx, state))

	state.SampleCount = 12
	require.NoError(t, a.SaveModel(ctx, state))

	got, err := a.LoadModel(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 12, got.SampleCount)
	assert.Equal(t, state.Nodes, got.Nodes)
	assert.Equal(t, state.Classes, got.Classes)
	assert.True(t, state.TrainedAt.Equal(got.TrainedAt))

	var rows int64
	require.NoError(t, a.db.Model(&ModelStateModel{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestUsersAndAudit(t *testing.T) {
	a := setupDB(t)
	ctx := context.Background()

	u, err := domain.NewUser("u-1", "carol", domain.RoleTechnician)
	require.NoError(t, err)
	require.NoError(t, a.SaveUser(ctx, *u))

	got, err := a.GetUserByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTechnician, got.Role)

	_, err = a.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	users, err := a.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	for i := 0; i < 3; i++ {
		entry, err := domain.NewAuditLog("carol", domain.ActionScanInitiated, "10.0.0.1", "")
		require.NoError(t, err)
		entry.Timestamp = time.Date(2025, 1, 1, i, 0, 0, 0, time.UTC)
		require.NoError(t, a.SaveAuditLog(ctx, *entry))
	}
	logs, err := a.ListAuditLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 2, logs[0].Timestamp.Hour())

	all, err := a.ListAuditLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
