package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ticket-bot/ticket"

	"github.com/bwmarrin/discordgo"
)

const memberAccess = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionAttachFiles |
	discordgo.PermissionReadMessageHistory

// Platform implements ticket.Platform against a live Discord session.
// It is the only place the lifecycle manager's intents turn into REST
// calls.
type Platform struct {
	session     *discordgo.Session
	guildID     string
	staffRoleID string
	controls    []discordgo.MessageComponent
	closeDelay  time.Duration
}

// NewPlatform wires the session to the manager. controls is the close
// button row handlers render into ticket channels; restore re-attaches
// the same row.
func NewPlatform(s *discordgo.Session, guildID, staffRoleID string, controls []discordgo.MessageComponent) *Platform {
	return &Platform{
		session:     s,
		guildID:     guildID,
		staffRoleID: staffRoleID,
		controls:    controls,
		closeDelay:  3 * time.Second,
	}
}

func (p *Platform) CreateTicketChannel(name, categoryID, ownerID string) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: p.guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: ownerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberAccess},
	}
	if p.staffRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    p.staffRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: memberAccess | discordgo.PermissionManageMessages,
		})
	}

	ch, err := p.session.GuildChannelCreateComplex(p.guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                ownerID,
		ParentID:             categoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

// DeleteChannel removes a ticket channel after a short grace period so
// members see the closing notice before the channel vanishes.
func (p *Platform) DeleteChannel(channelID string) error {
	time.Sleep(p.closeDelay)
	_, err := p.session.ChannelDelete(channelID)
	return err
}

func (p *Platform) MoveChannel(channelID, categoryID string) error {
	_, err := p.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{ParentID: categoryID})
	return err
}

func (p *Platform) GrantAccess(channelID, userID string) error {
	return p.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		discordgo.PermissionViewChannel|discordgo.PermissionSendMessages|discordgo.PermissionReadMessageHistory, 0)
}

func (p *Platform) ChannelExists(channelID string) (bool, error) {
	_, err := p.session.Channel(channelID)
	if err == nil {
		return true, nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return false, nil
	}
	return false, err
}

// ChannelHistory pages through the full message history, oldest first.
func (p *Platform) ChannelHistory(channelID string) ([]ticket.Message, error) {
	var all []*discordgo.Message
	beforeID := ""
	for {
		batch, err := p.session.ChannelMessages(channelID, 100, beforeID, "", "")
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			break
		}
		beforeID = batch[len(batch)-1].ID
	}

	// Discord returns newest first.
	msgs := make([]ticket.Message, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if m.Author == nil {
			continue
		}
		tm := ticket.Message{
			Timestamp:  m.Timestamp,
			AuthorID:   m.Author.ID,
			AuthorName: m.Author.Username,
			Content:    m.Content,
		}
		for _, a := range m.Attachments {
			tm.Attachments = append(tm.Attachments, a.URL)
		}
		msgs = append(msgs, tm)
	}
	return msgs, nil
}

func (p *Platform) SendTranscript(destChannelID string, tr *ticket.Transcript, t *ticket.Ticket) error {
	embed := &discordgo.MessageEmbed{
		Title: "📄 Ticket Transcript",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Ticket", Value: tr.ChannelID, Inline: true},
			{Name: "Opened By", Value: fmt.Sprintf("<@%s>", t.OwnerID), Inline: true},
			{Name: "Type", Value: string(t.Type), Inline: true},
			{Name: "Messages", Value: strconv.Itoa(len(tr.Messages)), Inline: true},
		},
		Timestamp: tr.GeneratedAt.Format(time.RFC3339),
	}

	_, err := p.session.ChannelMessageSendComplex(destChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{
			{
				Name:        tr.Filename(),
				ContentType: "text/plain",
				Reader:      strings.NewReader(tr.Render()),
			},
		},
	})
	return err
}

func (p *Platform) NotifyOwner(ownerID string, t *ticket.Ticket) error {
	dm, err := p.session.UserChannelCreate(ownerID)
	if err != nil {
		return err
	}

	reason := t.CloseReason
	if reason == "" {
		reason = "No reason specified"
	}
	embed := &discordgo.MessageEmbed{
		Title:       "🔒 Ticket Closed",
		Description: "Your ticket has been closed.",
		Color:       0xED4245,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Ticket", Value: t.ID, Inline: true},
			{Name: "Type", Value: string(t.Type), Inline: true},
			{Name: "Reason", Value: reason, Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	_, err = p.session.ChannelMessageSendEmbed(dm.ID, embed)
	return err
}

// RestoreControls re-attaches the close buttons to the intro message of
// a surviving ticket channel. If the intro message is gone, a fresh
// controls message is posted instead.
func (p *Platform) RestoreControls(channelID string) error {
	msgs, err := p.session.ChannelMessages(channelID, 50, "", "", "")
	if err != nil {
		return err
	}

	botID := ""
	if p.session.State != nil && p.session.State.User != nil {
		botID = p.session.State.User.ID
	}

	for _, m := range msgs {
		if m.Author == nil || m.Author.ID != botID {
			continue
		}
		if len(m.Embeds) == 0 || len(m.Components) == 0 {
			continue
		}
		edit := discordgo.NewMessageEdit(channelID, m.ID)
		edit.Components = &p.controls
		_, err := p.session.ChannelMessageEditComplex(edit)
		return err
	}

	_, err = p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    "Ticket controls restored after restart.",
		Components: p.controls,
	})
	return err
}

func (p *Platform) ChannelsInCategory(categoryID string) (map[string]string, error) {
	channels, err := p.session.GuildChannels(p.guildID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, ch := range channels {
		if ch.ParentID == categoryID && ch.Type == discordgo.ChannelTypeGuildText {
			out[ch.ID] = ch.Name
		}
	}
	return out, nil
}
