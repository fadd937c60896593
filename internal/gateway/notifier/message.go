package notifier

import (
	"fmt"
	"strings"
	"time"

	"exalted/internal/trading"
)

const maxStructuredMessageLen = 3800

// MessageSection is one titled block of a message.
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage renders as a Markdown message with code-fenced sections.
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown builds the message text, truncated to the Telegram limit.
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	header := strings.TrimSpace(m.Icon + " " + m.Title)
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	if block := renderSections(m.Sections); block != "" {
		b.WriteString(block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer))
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("Time: " + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxStructuredMessageLen {
		body = body[:maxStructuredMessageLen] + "..."
	}
	return body
}

// ForcedExitMessage describes the orders a risk activity submitted on its own.
func ForcedExitMessage(report *trading.Report) (StructuredMessage, bool) {
	if report == nil {
		return StructuredMessage{}, false
	}
	var lines []string
	for _, o := range report.Outcomes {
		if o.Status != trading.StatusSuccess || o.Order == nil {
			continue
		}
		line := fmt.Sprintf("%s %s", o.Action, o.Order.String())
		if o.Reason != "" {
			line += " (" + o.Reason + ")"
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return StructuredMessage{}, false
	}
	return StructuredMessage{
		Icon:      "⚠️",
		Title:     "Forced exit: " + report.Activity,
		Sections:  []MessageSection{{Title: "Orders", Lines: lines}},
		Timestamp: report.FinishedAt,
	}, true
}

func renderSections(secs []MessageSection) string {
	hasContent := false
	for _, sec := range secs {
		if len(sanitizeLines(sec.Lines)) > 0 {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for idx, sec := range secs {
		lines := sanitizeLines(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(sanitize(title))
			b.WriteString("\n")
		}
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(sanitize(line))
			b.WriteString("\n")
		}
		if idx != len(secs)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("```\n\n")
	return b.String()
}

func sanitizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
