package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/nats-io/nats.go"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConn struct {
	mock.Mock
}

func (m *MockConn) PublishMsg(msg *nats.Msg) error {
	return m.Called(msg).Error(0)
}

func (m *MockConn) IsConnected() bool {
	return m.Called().Bool(0)
}

type MockPoster struct {
	mock.Mock
}

func (m *MockPoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	args := m.Called(ctx, channelID, len(options))
	return args.String(0), args.String(1), args.Error(2)
}

func sampleAlert() domain.TechnicianAlert {
	scan := domain.NewScanRecord("alice", "192.168.1.20", []domain.ClassifiedObservation{
		{Observation: domain.Observation{Port: 21, Service: "ftp"}, Tier: domain.TierHigh, Recommendation: "Disable FTP"},
	}, domain.VerdictHigh, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	scan.ID = 4
	a := domain.NewTechnicianAlert(scan, scan.Observations, scan.Timestamp)
	a.ID = 9
	return *a
}

func TestNATSPublisher_PublishesJSONWithHeaders(t *testing.T) {
	conn := new(MockConn)
	conn.On("IsConnected").Return(true)
	var sent *nats.Msg
	conn.On("PublishMsg", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(*nats.Msg)
	}).Return(nil)

	p := newNATSPublisher(conn, "", nil)
	require.NoError(t, p.PublishTechAlert(context.Background(), sampleAlert()))

	require.NotNil(t, sent)
	assert.Equal(t, DefaultSubject, sent.Subject)
	assert.Equal(t, "9", sent.Header.Get("x-alert-id"))
	assert.Equal(t, "4", sent.Header.Get("x-scan-id"))
	assert.Equal(t, "High Risk", sent.Header.Get("x-risk-level"))
	assert.NotEmpty(t, sent.Header.Get(nats.MsgIdHdr))

	var decoded domain.TechnicianAlert
	require.NoError(t, json.Unmarshal(sent.Data, &decoded))
	assert.Equal(t, []uint16{21}, decoded.HighRiskPorts)
	assert.Equal(t, domain.VerdictHigh, decoded.RiskLevel)
}

func TestNATSPublisher_Disconnected(t *testing.T) {
	conn := new(MockConn)
	conn.On("IsConnected").Return(false)

	p := newNATSPublisher(conn, "alerts", nil)
	err := p.PublishTechAlert(context.Background(), sampleAlert())
	assert.ErrorIs(t, err, ErrNotConnected)
	conn.AssertNotCalled(t, "PublishMsg", mock.Anything)
}

func TestNATSPublisher_PublishError(t *testing.T) {
	conn := new(MockConn)
	conn.On("IsConnected").Return(true)
	conn.On("PublishMsg", mock.Anything).Return(nats.ErrConnectionClosed)

	p := newNATSPublisher(conn, "alerts", nil)
	err := p.PublishTechAlert(context.Background(), sampleAlert())
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestSlackPublisher(t *testing.T) {
	poster := new(MockPoster)
	poster.On("PostMessageContext", mock.Anything, "C123", 2).Return("C123", "1700000000.0001", nil).Once()

	p := newSlackPublisher(poster, "C123", nil)
	assert.Equal(t, "slack", p.Name())
	require.NoError(t, p.PublishTechAlert(context.Background(), sampleAlert()))
	poster.AssertExpectations(t)

	poster.On("PostMessageContext", mock.Anything, "C123", 2).Return("", "", errors.New("channel_not_found"))
	assert.ErrorContains(t, p.PublishTechAlert(context.Background(), sampleAlert()), "channel_not_found")
}

func TestAlertBlocks(t *testing.T) {
	a := sampleAlert()
	blocks := alertBlocks(a)
	// header, summary, divider, one section per port
	require.Len(t, blocks, 4)
	assert.Equal(t, slack.MBTHeader, blocks[0].BlockType())
	assert.Equal(t, slack.MBTDivider, blocks[2].BlockType())
	assert.Equal(t, "High Risk at 192.168.1.20 (ports 21)", alertText(a))
}
