package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/classifier"
	"github.com/lcalzada-xor/iotguard/internal/core/services/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockScanRepository
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

// MockNotificationRepository records inserted notifications in call order.
type MockNotificationRepository struct {
	mock.Mock
	inserted []domain.Notification
}

func (m *MockNotificationRepository) InsertNotification(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	if args.Error(0) == nil {
		n.ID = uint(len(m.inserted) + 1)
		m.inserted = append(m.inserted, *n)
	}
	return args.Error(0)
}

func (m *MockNotificationRepository) ListNotifications(ctx context.Context, username string, unreadOnly bool) ([]domain.Notification, error) {
	args := m.Called(ctx, username, unreadOnly)
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) CountUnreadNotifications(ctx context.Context, username string) (int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) MarkNotificationRead(ctx context.Context, id uint, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotificationRepository) MarkAllNotificationsRead(ctx context.Context, username string, at time.Time) (int64, error) {
	args := m.Called(ctx, username, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) DeleteNotification(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

// MockTechAlertRepository
type MockTechAlertRepository struct {
	mock.Mock
}

func (m *MockTechAlertRepository) InsertTechAlert(ctx context.Context, a *domain.TechnicianAlert) error {
	args := m.Called(ctx, a)
	if args.Error(0) == nil {
		a.ID = 7
	}
	return args.Error(0)
}

func (m *MockTechAlertRepository) ListTechAlerts(ctx context.Context, unreadOnly bool) ([]domain.TechnicianAlert, error) {
	args := m.Called(ctx, unreadOnly)
	return args.Get(0).([]domain.TechnicianAlert), args.Error(1)
}

func (m *MockTechAlertRepository) CountUnreadTechAlerts(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTechAlertRepository) MarkTechAlertRead(ctx context.Context, id uint, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockTechAlertRepository) MarkAllTechAlertsRead(ctx context.Context, at time.Time) (int64, error) {
	args := m.Called(ctx, at)
	return args.Get(0).(int64), args.Error(1)
}

// MockPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Name() string { return "mock" }

func (m *MockPublisher) PublishTechAlert(ctx context.Context, alert domain.TechnicianAlert) error {
	return m.Called(ctx, alert).Error(0)
}

type fixture struct {
	scans  *MockScanRepository
	notes  *MockNotificationRepository
	alerts *MockTechAlertRepository
	d      *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		scans:  new(MockScanRepository),
		notes:  new(MockNotificationRepository),
		alerts: new(MockTechAlertRepository),
	}
	f.d = NewDispatcher(f.scans, f.notes, f.alerts, nil)
	f.d.now = func() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func scanOf(t *testing.T, verdict domain.Verdict, ports map[uint16]string, order ...uint16) (domain.ScanRecord, classifier.Result) {
	t.Helper()
	var obs []domain.Observation
	for _, p := range order {
		obs = append(obs, domain.Observation{Port: p, Service: ports[p]})
	}
	res := classifier.Classify(rules.Default(), obs)
	scan := domain.NewScanRecord("alice", "192.168.1.50", res.Observations, verdict, time.Date(2025, 5, 1, 9, 59, 0, 0, time.UTC))
	return scan, res
}

func types(ns []domain.Notification) []domain.NotificationType {
	out := make([]domain.NotificationType, len(ns))
	for i, n := range ns {
		out[i] = n.Type
	}
	return out
}

func TestDispatch_HighRiskCreatesSingleAlertWithHighPortsOnly(t *testing.T) {
	f := newFixture()
	pub := new(MockPublisher)
	f.d.AddPublisher(pub)

	scan, res := scanOf(t, domain.VerdictHigh, map[uint16]string{21: "ftp", 80: "http"}, 21, 80)

	f.scans.On("InsertScan", mock.Anything, scan).Return(uint(42), nil)
	f.notes.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)
	f.alerts.On("InsertTechAlert", mock.Anything, mock.MatchedBy(func(a *domain.TechnicianAlert) bool {
		return a.ScanID == 42 && a.RiskLevel == domain.VerdictHigh
	})).Return(nil).Once()
	pub.On("PublishTechAlert", mock.Anything, mock.MatchedBy(func(a domain.TechnicianAlert) bool {
		return a.ID == 7
	})).Return(nil).Once()

	out, err := f.d.Dispatch(context.Background(), scan, res)
	require.NoError(t, err)

	assert.Equal(t, uint(42), out.ScanID)
	assert.Equal(t, []domain.NotificationType{
		domain.NotificationHighRisk,
		domain.NotificationScanComplete,
		domain.NotificationTechContact,
	}, types(f.notes.inserted))
	for _, n := range f.notes.inserted {
		require.NotNil(t, n.RelatedScanID)
		assert.Equal(t, uint(42), *n.RelatedScanID)
		assert.Equal(t, "alice", n.Username)
		assert.False(t, n.IsRead)
	}

	require.NotNil(t, out.Alert)
	assert.Equal(t, []uint16{21}, out.Alert.HighRiskPorts)
	require.Len(t, out.Alert.PortDetails, 1)
	assert.Equal(t, "ftp", out.Alert.PortDetails[0].Service)
	assert.Equal(t, "User alice detected High Risk device at 192.168.1.50", out.Alert.Message)
	assert.Equal(t, "21", out.Alert.FormatPorts())

	f.alerts.AssertNumberOfCalls(t, "InsertTechAlert", 1)
	pub.AssertExpectations(t)
}

func TestDispatch_LowRiskEmitsExactlyTwoNotifications(t *testing.T) {
	f := newFixture()
	scan, res := scanOf(t, domain.VerdictLow, map[uint16]string{22: "ssh", 443: "https"}, 22, 443)

	f.scans.On("InsertScan", mock.Anything, scan).Return(uint(1), nil)
	f.notes.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)

	out, err := f.d.Dispatch(context.Background(), scan, res)
	require.NoError(t, err)

	assert.Equal(t, []domain.NotificationType{domain.NotificationLowRisk, domain.NotificationScanComplete}, types(out.Notifications))
	assert.Nil(t, out.Alert)
	assert.Equal(t, "Scan Complete - Device Secure", out.Notifications[0].Subject)
	assert.Equal(t, "Scan Complete: 192.168.1.50", out.Notifications[1].Subject)
	assert.Contains(t, out.Notifications[1].Message, "AI Assessment: Low Risk")
	f.alerts.AssertNotCalled(t, "InsertTechAlert", mock.Anything, mock.Anything)
}

func TestDispatch_MediumRisk(t *testing.T) {
	f := newFixture()
	scan, res := scanOf(t, domain.VerdictMedium, map[uint16]string{21: "ftp", 22: "ssh"}, 21, 22)

	f.scans.On("InsertScan", mock.Anything, scan).Return(uint(3), nil)
	f.notes.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)

	out, err := f.d.Dispatch(context.Background(), scan, res)
	require.NoError(t, err)

	require.Len(t, out.Notifications, 2)
	assert.Equal(t, domain.NotificationMediumRisk, out.Notifications[0].Type)
	assert.Contains(t, out.Notifications[0].Message, "• High Risk Ports: 1")
	assert.Contains(t, out.Notifications[0].Message, "• Total Open Ports: 2")
	assert.Nil(t, out.Alert)
}

func TestDispatch_HighVerdictWithoutHighPortsSkipsAlert(t *testing.T) {
	f := newFixture()
	// Model predicted High while the rule table has no High port in this scan.
	scan, res := scanOf(t, domain.VerdictHigh, map[uint16]string{80: "http"}, 80)

	f.scans.On("InsertScan", mock.Anything, scan).Return(uint(5), nil)
	f.notes.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)

	out, err := f.d.Dispatch(context.Background(), scan, res)
	require.NoError(t, err)

	assert.Equal(t, []domain.NotificationType{
		domain.NotificationHighRisk,
		domain.NotificationScanComplete,
		domain.NotificationTechContact,
	}, types(out.Notifications))
	assert.Nil(t, out.Alert)
}

func TestDispatch_ScanInsertFailureEmitsNothing(t *testing.T) {
	f := newFixture()
	scan, res := scanOf(t, domain.VerdictHigh, map[uint16]string{23: "telnet"}, 23)

	f.scans.On("InsertScan", mock.Anything, scan).Return(uint(0), errors.New("database locked"))

	_, err := f.d.Dispatch(context.Background(), scan, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	var dErr *domain.DispatchError
	assert.False(t, errors.As(err, &dErr))
	f.notes.AssertNotCalled(t, "InsertNotification", mock.Anything, mock.Anything)
	f.alerts.AssertNotCalled(t, "InsertTechAlert", mock.Anything, mock.Anything)
}

func TestDispatch_PartialFailureContinues(t *testing.T) {
	f := newFixture()
	scan, res := scanOf(t, domain.VerdictHigh, map[uint16]string{23: "telnet", 3389: "ms-wbt-server"}, 23, 3389)

	f.scans.On("InsertScan", mock.Anything, scan).Return(uint(9), nil)
	f.notes.On("InsertNotification", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.Type == domain.NotificationHighRisk
	})).Return(errors.New("constraint failed"))
	f.notes.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)
	f.alerts.On("InsertTechAlert", mock.Anything, mock.Anything).Return(nil)

	out, err := f.d.Dispatch(context.Background(), scan, res)
	require.Error(t, err)

	var dErr *domain.DispatchError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, uint(9), dErr.ScanID)
	require.Len(t, dErr.Failures, 1)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Len(t, out.Failures, 1)

	assert.Equal(t, []domain.NotificationType{domain.NotificationScanComplete, domain.NotificationTechContact}, types(out.Notifications))
	require.NotNil(t, out.Alert)
	assert.Equal(t, []uint16{23, 3389}, out.Alert.HighRiskPorts)
	assert.Contains(t, out.Alert.FormatPortDetails(), " | ")
}

func TestDispatch_PublisherFailureIsNotDispatchFailure(t *testing.T) {
	f := newFixture()
	pub := new(MockPublisher)
	f.d.AddPublisher(pub)
	scan, res := scanOf(t, domain.VerdictHigh, map[uint16]string{23: "telnet"}, 23)

	f.scans.On("InsertScan", mock.Anything, scan).Return(uint(11), nil)
	f.notes.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)
	f.alerts.On("InsertTechAlert", mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishTechAlert", mock.Anything, mock.Anything).Return(errors.New("nats: no servers"))

	out, err := f.d.Dispatch(context.Background(), scan, res)
	assert.NoError(t, err)
	assert.NotNil(t, out.Alert)
	pub.AssertNumberOfCalls(t, "PublishTechAlert", 1)
}

func TestDispatch_AlertFailureIsReported(t *testing.T) {
	f := newFixture()
	pub := new(MockPublisher)
	f.d.AddPublisher(pub)
	scan, res := scanOf(t, domain.VerdictHigh, map[uint16]string{23: "telnet"}, 23)

	f.scans.On("InsertScan", mock.Anything, scan).Return(uint(12), nil)
	f.notes.On("InsertNotification", mock.Anything, mock.Anything).Return(nil)
	f.alerts.On("InsertTechAlert", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	out, err := f.d.Dispatch(context.Background(), scan, res)
	var dErr *domain.DispatchError
	require.ErrorAs(t, err, &dErr)
	assert.Contains(t, dErr.Error(), StepTechAlert)
	assert.Nil(t, out.Alert)
	assert.Len(t, out.Notifications, 3)
	pub.AssertNotCalled(t, "PublishTechAlert", mock.Anything, mock.Anything)
}
