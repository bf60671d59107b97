package ticket

import (
	"fmt"
	"strings"
	"time"
)

// Message is one channel message as captured for a transcript. The core
// never touches discordgo types; the platform layer converts.
type Message struct {
	Timestamp   time.Time
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []string
}

// Transcript is the chronological export of a ticket channel, produced
// at close time and delivered to the transcripts channel.
type Transcript struct {
	ChannelID   string
	GeneratedAt time.Time
	Messages    []Message
}

// Render formats the transcript as plain text, oldest message first.
func (tr *Transcript) Render() string {
	var sb strings.Builder
	sb.WriteString("=== TICKET TRANSCRIPT ===\n")
	sb.WriteString(fmt.Sprintf("Channel: %s\nGenerated: %s\nMessages: %d\n\n",
		tr.ChannelID, tr.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"), len(tr.Messages)))

	if len(tr.Messages) == 0 {
		sb.WriteString("(no messages)\n")
		return sb.String()
	}

	for _, m := range tr.Messages {
		content := m.Content
		if content == "" {
			content = "[no content]"
		}
		ts := m.Timestamp.UTC().Format("2006-01-02 15:04:05")
		sb.WriteString(fmt.Sprintf("[%s] %s (%s): %s\n", ts, m.AuthorName, m.AuthorID, content))
		for _, url := range m.Attachments {
			sb.WriteString(fmt.Sprintf("  attachment: %s\n", url))
		}
	}
	return sb.String()
}

func (tr *Transcript) Filename() string {
	return fmt.Sprintf("ticket-%s-transcript.txt", tr.ChannelID)
}
