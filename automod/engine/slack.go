package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spotter-social/spotter/automod/audit"
)

// SlackNotifier posts decision notifications and operational alerts to a Slack channel.
type SlackNotifier struct {
	SlackWebhookURL string
	// optional; admin UI base URL used to link records
	AdminURL string
	Client   *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)
var _ audit.Alerter = (*SlackNotifier)(nil)

func NewSlackNotifier(webhookURL, adminURL string) *SlackNotifier {
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		AdminURL:        strings.TrimSuffix(adminURL, "/"),
		Client:          &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *SlackNotifier) SendDecision(ctx context.Context, rec *audit.Record) error {
	return n.sendSlackMsg(ctx, slackBody("⚠️ Spotter Moderation Action ⚠️\n", rec, n.AdminURL))
}

func (n *SlackNotifier) Alert(ctx context.Context, msg string) error {
	return n.sendSlackMsg(ctx, "🚨 Spotter Alert 🚨\n"+msg)
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	// loosely based on: https://golangcode.com/send-slack-messages-without-a-library/

	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(header string, rec *audit.Record, adminURL string) string {
	msg := header
	if adminURL != "" {
		msg += fmt.Sprintf("`%s` / `%s` / <%s/audit/%s|record>\n", rec.AuthorID, rec.ContentRef, adminURL, rec.ID)
	} else {
		msg += fmt.Sprintf("`%s` / `%s` / record `%s`\n", rec.AuthorID, rec.ContentRef, rec.ID)
	}
	if v := rec.Verdict; v != nil {
		msg += fmt.Sprintf("Verdict: `%s` severity %d (%s priority)\n", v.Action, v.Severity, v.ReviewPriority)
		if v.Reason != "" {
			msg += fmt.Sprintf("Reason: %s\n", v.Reason)
		}
		rules := []string{}
		for _, c := range v.Categories {
			rules = append(rules, c.RuleID)
		}
		if len(rules) > 0 {
			msg += fmt.Sprintf("Rules: `%s`\n", strings.Join(rules, ", "))
		}
	}
	if e := rec.Enforcement; e != nil && e.Changed() {
		msg += fmt.Sprintf("Enforcement: `%s` (%s → %s), reputation %d\n", e.ActionTaken, e.PreviousStatus, e.NewStatus, e.Reputation)
	}
	return msg
}
