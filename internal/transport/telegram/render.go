package telegram

import (
	"fmt"
	"strings"

	"relaybot/internal/notify"
)

const renderTimeLayout = "2006-01-02 15:04"

// RenderNotice turns a notice into the plain-text form posted to a chat.
func RenderNotice(n notify.Notice) string {
	switch n.Kind {
	case notify.NoticeReminder:
		return renderReminder(n)
	default:
		return renderMessage(n)
	}
}

func renderMessage(n notify.Notice) string {
	var b strings.Builder
	b.WriteString("📨 ")
	if n.SourceRoom != "" {
		b.WriteString("#")
		b.WriteString(n.SourceRoom)
		b.WriteString(" ")
	}
	b.WriteString("from ")
	b.WriteString(orUnknown(n.Sender))
	if n.MessageType != "" && n.MessageType != "text" {
		fmt.Fprintf(&b, " (%s)", n.MessageType)
	}
	b.WriteString("\n")
	b.WriteString(n.Body)

	if len(n.Similar) > 0 {
		b.WriteString("\n\nRelated messages:")
		for i, h := range n.Similar {
			fmt.Fprintf(&b, "\n%d. [%s] %s: %s",
				i+1, h.At.Format(renderTimeLayout), orUnknown(h.Sender), h.Content)
		}
	}
	return b.String()
}

func renderReminder(n notify.Notice) string {
	var b strings.Builder
	b.WriteString("⏰ Reminder: ")
	b.WriteString(n.Title)
	if !n.DueDate.IsZero() {
		fmt.Fprintf(&b, "\nDue: %s", n.DueDate.Format(renderTimeLayout))
	}
	if n.Description != "" {
		b.WriteString("\n")
		b.WriteString(n.Description)
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
