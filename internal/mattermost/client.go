// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hundredk/challenge-tracker/internal/config"
	"github.com/hundredk/challenge-tracker/internal/metrics"
	"github.com/hundredk/challenge-tracker/internal/service/progression"
	"github.com/hundredk/challenge-tracker/pkg/logger"
)

const botUsername = "100K Challenge"

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback   string  `json:"fallback,omitempty"`
	Color      string  `json:"color,omitempty"`
	Pretext    string  `json:"pretext,omitempty"`
	AuthorName string  `json:"author_name,omitempty"`
	AuthorLink string  `json:"author_link,omitempty"`
	Title      string  `json:"title,omitempty"`
	Text       string  `json:"text,omitempty"`
	Fields     []Field `json:"fields,omitempty"`
	ThumbURL   string  `json:"thumb_url,omitempty"`
	Footer     string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}
	if msg.Username == "" {
		msg.Username = botUsername
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendLevelUp announces that a user reached a new level.
func (c *Client) SendLevelUp(ctx context.Context, username string, from, to progression.Level, earnings float64) error {
	if !c.enabled || to.Number <= from.Number {
		return nil
	}

	text := fmt.Sprintf("%s **@%s** leveled up to **%s** (level %d)!", to.Emoji, username, to.Name, to.Number)
	next := progression.NextLevelInfo(earnings)

	fields := []Field{
		{Short: true, Title: "Previous level", Value: fmt.Sprintf("%s %s", from.Emoji, from.Name)},
		{Short: true, Title: "Total earnings", Value: fmt.Sprintf("$%.2f", earnings)},
	}
	if next.Next != nil {
		fields = append(fields, Field{
			Short: false,
			Title: "Next up",
			Value: fmt.Sprintf("%s %s in $%.2f", next.Next.Emoji, next.Next.Name, next.Remaining),
		})
	}

	err := c.SendMessage(ctx, &Message{
		Text: text,
		Attachments: []Attachment{{
			Fallback: text,
			Color:    "#f7b500",
			Fields:   fields,
		}},
	})
	recordOutcome("level_up", err)
	return err
}

// SendAchievementUnlocked announces a rare or better achievement.
func (c *Client) SendAchievementUnlocked(ctx context.Context, username string, a progression.Achievement) error {
	if !c.enabled {
		return nil
	}

	text := fmt.Sprintf("%s **@%s** unlocked **%s**", a.Emoji, username, a.Name)
	err := c.SendMessage(ctx, &Message{
		Text: text,
		Attachments: []Attachment{{
			Fallback: text,
			Color:    rarityColor(a.Rarity),
			Title:    a.Name,
			Text:     a.Description,
			Footer:   a.Rarity,
		}},
	})
	recordOutcome("achievement", err)
	return err
}

// ReconcileSummary is the outcome of a nightly reconciliation run.
type ReconcileSummary struct {
	Profiles     int
	LevelChanges int
	Unlocked     int
	Failed       int
	Duration     time.Duration
}

// SendReconcileSummary posts the nightly reconciliation report.
func (c *Client) SendReconcileSummary(ctx context.Context, s ReconcileSummary) error {
	if !c.enabled {
		return nil
	}

	text := fmt.Sprintf("### 🌙 Nightly reconciliation\n\n"+
		"| Profiles | Level changes | Achievements | Failed | Duration |\n"+
		"|---|---|---|---|---|\n"+
		"| %d | %d | %d | %d | %s |",
		s.Profiles, s.LevelChanges, s.Unlocked, s.Failed, s.Duration.Round(time.Millisecond))

	err := c.SendMessage(ctx, &Message{Text: text})
	recordOutcome("reconcile_summary", err)
	return err
}

func rarityColor(rarity string) string {
	switch rarity {
	case "legendary":
		return "#ff8000"
	case "epic":
		return "#a335ee"
	case "rare":
		return "#0070dd"
	default:
		return "#9d9d9d"
	}
}

func recordOutcome(kind string, err error) {
	if err != nil {
		metrics.RecordNotificationFailed(kind)
		return
	}
	metrics.RecordNotificationSent(kind)
}
