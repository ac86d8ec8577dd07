// Package channels implements per-channel delivery readiness, template
// rendering, and bounded-retry delivery attempts. No real network call
// is made to any provider; delivery is simulated the same way the
// connector simulator stands in for real source I/O.
package channels

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/slack-go/slack"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/reports"
	"github.com/rcourtman/insightctl/internal/state"
)

const (
	Email    = "email"
	Slack    = "slack"
	Telegram = "telegram"
)

// defaultTemplates are the per-channel bodies used when the caller (or
// report type) doesn't override them.
var defaultTemplates = map[string]string{
	Slack:    "[{{channel}}] {{reportTitle}} | {{reportSummary}} | confidence={{confidence}}",
	Telegram: "[{{channel}}] {{reportTitle}} | {{reportSummary}}",
	Email:    "Report: {{reportTitle}}\n\n{{reportSummary}}\n\nRun: {{runId}}\nInsight: {{insightId}}\nConfidence: {{confidence}}\nRecommended actions: {{actionsCount}}",
}

// TemplateContext is the set of variables a channel template may
// reference.
type TemplateContext struct {
	ReportTitle   string
	ReportSummary string
	TenantID      string
	Channel       string
	RunID         string
	InsightID     string
	Confidence    float64
	ActionsCount  int
}

// Render substitutes {{var}} placeholders in a template with the
// context's fields. An empty template falls back to the channel's
// built-in default.
func Render(channel, template string, ctx TemplateContext) string {
	if template == "" {
		template = defaultTemplates[channel]
	}
	replacer := strings.NewReplacer(
		"{{reportTitle}}", ctx.ReportTitle,
		"{{reportSummary}}", ctx.ReportSummary,
		"{{tenantId}}", ctx.TenantID,
		"{{channel}}", ctx.Channel,
		"{{runId}}", ctx.RunID,
		"{{insightId}}", ctx.InsightID,
		"{{confidence}}", strconv.FormatFloat(ctx.Confidence, 'f', 2, 64),
		"{{actionsCount}}", strconv.Itoa(ctx.ActionsCount),
	)
	return replacer.Replace(template)
}

// Readiness reports whether a channel can accept a delivery attempt
// right now, per its own per-channel rules.
func Readiness(settings *state.Settings, channel string) (ready bool, reason string) {
	if settings == nil || settings.Channels == nil {
		if channel == Email {
			return true, ""
		}
		return false, "channel_settings_missing"
	}
	cfg, ok := settings.Channels[channel]
	if !ok {
		if channel == Email {
			return true, ""
		}
		return false, "channel_settings_missing"
	}
	switch channel {
	case Email:
		return true, ""
	case Slack:
		if cfg.Enabled && cfg.WebhookRef != "" {
			return true, ""
		}
		return false, "slack_disabled"
	case Telegram:
		if cfg.Enabled && cfg.BotTokenRef != "" && cfg.ChatID != "" {
			return true, ""
		}
		return false, "telegram_disabled"
	default:
		return false, "unknown_channel"
	}
}

// forceFailed reports whether the caller asked this attempt to be
// simulated as a failure regardless of readiness (used by tests and
// end-to-end scenarios that exercise the retry path).
func forceFailed(channel string, forceFailChannels []string) bool {
	for _, c := range forceFailChannels {
		if c == channel {
			return true
		}
	}
	return false
}

// buildResponseMetadata constructs a typed, channel-specific payload
// preview attached to the event for observability. It is never sent
// over the network; building it exercises the same payload shapes a
// real transport would serialize.
func buildResponseMetadata(channel, rendered string) map[string]any {
	switch channel {
	case Slack:
		msg := slack.WebhookMessage{Text: rendered}
		body, _ := json.Marshal(msg)
		var generic map[string]any
		_ = json.Unmarshal(body, &generic)
		return map[string]any{"slackPayload": generic}
	default:
		return map[string]any{"rendered": rendered}
	}
}

// Deliver makes one delivery attempt for a freshly generated report and
// records it as a new channel event.
func Deliver(tenant state.Tenant, settings *state.Settings, report state.Report, channel, template string, ctx TemplateContext, forceFailChannels []string) state.ChannelEvent {
	ready, reason := Readiness(settings, channel)
	rendered := Render(channel, template, ctx)

	status := "delivered"
	lastError := ""
	if !ready || forceFailed(channel, forceFailChannels) {
		status = "failed"
		lastError = reason
		if lastError == "" {
			lastError = "delivery_failed"
		}
	}

	payload := state.ChannelPayload{
		ReportID: report.ID,
		Title:    report.Title,
		Summary:  report.Summary,
		Message:  rendered,
	}
	if report.Format == "pdf" {
		payload.Attachment = reports.RenderPDF(report)
		payload.AttachmentFilename = report.Title + ".pdf"
	}

	return state.ChannelEvent{
		TenantID:         tenant.ID,
		Channel:          channel,
		EventType:        "report_delivery",
		Status:           status,
		AttemptCount:     1,
		MaxAttempts:      3,
		LastError:        lastError,
		Payload:          payload,
		ResponseMetadata: buildResponseMetadata(channel, rendered),
	}
}

// Retry re-attempts delivery of an existing channel event under a
// monotonicity guarantee: attemptCount only grows, and a
// failed_permanent event never changes status again.
func Retry(event state.ChannelEvent, settings *state.Settings, template string, ctx TemplateContext, forceFailChannels []string) (state.ChannelEvent, error) {
	if event.Status == "failed_permanent" {
		return event, nil
	}

	maxAttempts := event.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if event.AttemptCount >= maxAttempts {
		return state.ChannelEvent{}, apierror.BadRequest("channel event %q has exhausted its retry budget", event.ID)
	}

	ready, reason := Readiness(settings, event.Channel)
	rendered := Render(event.Channel, template, ctx)

	event.AttemptCount++
	if ready && !forceFailed(event.Channel, forceFailChannels) {
		event.Status = "delivered"
		event.LastError = ""
	} else {
		lastError := reason
		if lastError == "" {
			lastError = "delivery_failed"
		}
		event.LastError = lastError
		if event.AttemptCount >= maxAttempts {
			event.Status = "failed_permanent"
		} else {
			event.Status = "failed"
		}
	}
	event.Payload.Message = rendered
	event.ResponseMetadata = buildResponseMetadata(event.Channel, rendered)
	return event, nil
}
