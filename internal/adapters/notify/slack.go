package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"github.com/slack-go/slack"
)

// Ensure interface compliance
var _ ports.AlertPublisher = (*SlackPublisher)(nil)

type messagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackPublisher posts technician alerts into a channel.
type SlackPublisher struct {
	api     messagePoster
	channel string
	logger  *slog.Logger
}

func NewSlackPublisher(token, channel string, logger *slog.Logger) *SlackPublisher {
	return newSlackPublisher(slack.New(token), channel, logger)
}

func newSlackPublisher(api messagePoster, channel string, logger *slog.Logger) *SlackPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackPublisher{api: api, channel: channel, logger: logger}
}

func (p *SlackPublisher) Name() string { return "slack" }

func (p *SlackPublisher) PublishTechAlert(ctx context.Context, alert domain.TechnicianAlert) error {
	_, ts, err := p.api.PostMessageContext(ctx, p.channel,
		slack.MsgOptionText(alertText(alert), false),
		slack.MsgOptionBlocks(alertBlocks(alert)...),
	)
	if err != nil {
		return fmt.Errorf("failed to post alert to slack: %w", err)
	}
	p.logger.Debug("Posted technician alert to slack", "alert_id", alert.ID, "channel", p.channel, "ts", ts)
	return nil
}

// alertText is the notification fallback for clients without block support.
func alertText(a domain.TechnicianAlert) string {
	return fmt.Sprintf("%s at %s (ports %s)", a.RiskLevel, a.Target, a.FormatPorts())
}

func alertBlocks(a domain.TechnicianAlert) []slack.Block {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, "Technician alert: "+a.RiskLevel.String(), false, false),
	)
	summary := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, a.Message, false, false),
		[]*slack.TextBlockObject{
			slack.NewTextBlockObject(slack.MarkdownType, "*Target*\n"+a.Target, false, false),
			slack.NewTextBlockObject(slack.MarkdownType, "*Reported by*\n"+a.Username, false, false),
			slack.NewTextBlockObject(slack.MarkdownType, "*High risk ports*\n"+a.FormatPorts(), false, false),
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Scan*\n#%d", a.ScanID), false, false),
		},
		nil,
	)
	blocks := []slack.Block{header, summary, slack.NewDividerBlock()}
	for _, d := range a.PortDetails {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Port %d* (%s)\n%s", d.Port, d.Service, d.Recommendation), false, false),
			nil, nil,
		))
	}
	return blocks
}
