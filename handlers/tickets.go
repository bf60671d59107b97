package handlers

import (
	"fmt"
	"strconv"
	"time"

	"ticket-bot/lang"
	"ticket-bot/ticket"

	"github.com/bwmarrin/discordgo"
)

// ticketTypeInfo drives both the panel select menu and the welcome embed
// of a fresh ticket channel. A closed set: every entry maps to exactly
// one lifecycle operation input.
type ticketTypeInfo struct {
	Type        ticket.Type
	Label       string
	Description string
	Emoji       string
	EmbedTitle  string
	EmbedText   string
}

var ticketTypes = []ticketTypeInfo{
	{
		Type:        ticket.TypeSupport,
		Label:       "Support",
		Description: "Get help with technical issues or general questions",
		Emoji:       "🛠️",
		EmbedTitle:  "Support Ticket",
		EmbedText:   "Thank you for creating a support ticket. Our team will assist you shortly.",
	},
	{
		Type:        ticket.TypePartnership,
		Label:       "Partnership",
		Description: "Discuss partnership opportunities",
		Emoji:       "🤝",
		EmbedTitle:  "Partnership Inquiry",
		EmbedText:   "Thank you for your interest in partnering with us. Please provide all necessary details.",
	},
}

func typeInfo(t ticket.Type) *ticketTypeInfo {
	for idx := range ticketTypes {
		if ticketTypes[idx].Type == t {
			return &ticketTypes[idx]
		}
	}
	return nil
}

func ticketCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ticket",
			Description: "Ticket system management",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "setup", Description: "Post the ticket panel (admin only)",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to post the panel in (defaults to the configured one)"},
					},
				},
				{
					Name: "stats", Description: "Show ticket statistics (staff only)",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
		{
			Name: "close", Description: "Close the current ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for closing"},
			},
		},
		{
			Name: "add", Description: "Add a user to the current ticket (staff only)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to add", Required: true},
			},
		},
		{Name: "transfer", Description: "Move the current ticket to the transfer category (staff only)"},
	}
}

// TicketControls is the button row posted into every ticket channel and
// re-attached on restart.
func TicketControls() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label: "Close Ticket", Style: discordgo.DangerButton,
					CustomID: "ticket_close_btn",
					Emoji:    &discordgo.ComponentEmoji{Name: "🔒"},
				},
				discordgo.Button{
					Label: "Close with Reason", Style: discordgo.SecondaryButton,
					CustomID: "ticket_close_reason_btn",
					Emoji:    &discordgo.ComponentEmoji{Name: "📝"},
				},
			},
		},
	}
}

func handleTicketCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "setup":
		handleTicketSetup(s, i, sub.Options)
	case "stats":
		handleTicketStats(s, i)
	}
}

func handleTicketSetup(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	if !isAdmin(i) {
		respond(s, i, lang.T("admin_only"), true)
		return
	}

	om := subOptMap(opts)
	panelCh := Cfg.TicketChannelID
	if ch, ok := om["channel"]; ok {
		panelCh = ch.ChannelValue(s).ID
	}
	if panelCh == "" {
		respond(s, i, lang.T("panel_failed", "error", "no panel channel configured"), true)
		return
	}

	var typeList string
	menuOpts := make([]discordgo.SelectMenuOption, 0, len(ticketTypes))
	for _, info := range ticketTypes {
		typeList += fmt.Sprintf("%s **%s** — %s\n", info.Emoji, info.Label, info.Description)
		menuOpts = append(menuOpts, discordgo.SelectMenuOption{
			Label:       info.Label,
			Value:       string(info.Type),
			Description: info.Description,
			Emoji:       &discordgo.ComponentEmoji{Name: info.Emoji},
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎫 Ticket System",
		Description: "Use the dropdown menu below to create a ticket according to your needs.\n\n**Please note:** Abuse of the ticket system may result in warnings or restrictions.",
		Color:       0x57F287,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "📋 Available Ticket Types", Value: typeList},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Select a ticket type from the dropdown below"},
	}

	_, err := s.ChannelMessageSendComplex(panelCh, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    "ticket_type_select",
						Placeholder: "Choose your ticket type...",
						Options:     menuOpts,
					},
				},
			},
		},
	})
	if err != nil {
		respond(s, i, lang.T("panel_failed", "error", err.Error()), true)
		return
	}
	respond(s, i, lang.T("panel_posted"), true)
}

func handleTypeSelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if len(data.Values) == 0 {
		return
	}
	info := typeInfo(ticket.Type(data.Values[0]))
	if info == nil {
		respond(s, i, lang.T("internal_error", "error", "unknown ticket type"), true)
		return
	}

	user := i.Member.User
	unlimited := hasRole(i.Member, Cfg.UnlimitedTicketsRoleID)

	t, err := Manager.Open(user.ID, user.Username, info.Type, unlimited)
	if err != nil {
		respond(s, i, ticketErrMsg(err), true)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       info.EmbedTitle,
		Description: info.EmbedText,
		Color:       0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Created by", Value: fmt.Sprintf("<@%s>", user.ID), Inline: true},
			{Name: "Created at", Value: fmt.Sprintf("<t:%d:F>", t.CreatedAt.Unix()), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Ticket ID: " + t.ID},
	}

	_, _ = s.ChannelMessageSendComplex(t.ID, &discordgo.MessageSend{
		Content:    fmt.Sprintf("<@%s>", user.ID),
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: TicketControls(),
	})

	respond(s, i, lang.T("ticket_created", "type", info.Label, "channel", t.ID), true)
}

func handleCloseCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	t := Manager.Lookup(i.ChannelID)
	if t == nil {
		respond(s, i, lang.T("not_ticket_channel"), true)
		return
	}
	if !isStaff(i) && i.Member.User.ID != t.OwnerID {
		respond(s, i, lang.T("no_permission"), true)
		return
	}

	reason := optStr(optionMap(i), "reason", "")
	respond(s, i, lang.T("closing"), false)
	closeTicket(s, i, reason)
}

func handleCloseButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	t := Manager.Lookup(i.ChannelID)
	if t == nil {
		respond(s, i, lang.T("not_ticket_channel"), true)
		return
	}
	if !isStaff(i) && i.Member.User.ID != t.OwnerID {
		respond(s, i, lang.T("no_permission"), true)
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: lang.T("close_confirm"),
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{Label: "Confirm Close", Style: discordgo.DangerButton, CustomID: "ticket_close_confirm"},
						discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: "ticket_close_cancel"},
					},
				},
			},
		},
	})
}

func handleCloseConfirm(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if Manager.Lookup(i.ChannelID) == nil {
		respond(s, i, lang.T("ticket_not_found"), true)
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    lang.T("closing"),
			Components: []discordgo.MessageComponent{},
		},
	})
	closeTicket(s, i, "")
}

func handleCloseCancel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    lang.T("close_cancelled"),
			Components: []discordgo.MessageComponent{},
		},
	})
}

func handleCloseReasonButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	t := Manager.Lookup(i.ChannelID)
	if t == nil {
		respond(s, i, lang.T("not_ticket_channel"), true)
		return
	}
	if !isStaff(i) && i.Member.User.ID != t.OwnerID {
		respond(s, i, lang.T("no_permission"), true)
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: "ticket_close_modal",
			Title:    "Close Ticket with Reason",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "close_reason",
							Label:       "Reason for closing",
							Style:       discordgo.TextInputParagraph,
							Placeholder: "Enter the reason for closing this ticket...",
							Required:    true,
							MaxLength:   500,
						},
					},
				},
			},
		},
	})
}

func handleCloseModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	reason := ""
	if len(data.Components) > 0 {
		if row, ok := data.Components[0].(*discordgo.ActionsRow); ok && len(row.Components) > 0 {
			if input, ok := row.Components[0].(*discordgo.TextInput); ok {
				reason = input.Value
			}
		}
	}

	respond(s, i, lang.T("closing"), false)
	closeTicket(s, i, reason)
}

// closeTicket runs the lifecycle close after the interaction has been
// acknowledged; failures go out as an ephemeral followup because the
// channel may already be gone.
func closeTicket(s *discordgo.Session, i *discordgo.InteractionCreate, reason string) {
	if err := Manager.Close(i.ChannelID, i.Member.User.ID, isStaff(i), reason); err != nil {
		followup(s, i, lang.T("close_failed", "error", ticketErrMsg(err)))
	}
}

func handleAddUser(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isStaff(i) {
		respond(s, i, lang.T("staff_only"), true)
		return
	}
	if Manager.Lookup(i.ChannelID) == nil {
		respond(s, i, lang.T("not_ticket_channel"), true)
		return
	}

	target := optionMap(i)["user"].UserValue(s)
	if err := Manager.AddUser(i.ChannelID, target.ID, i.Member.User.ID, true); err != nil {
		respond(s, i, lang.T("add_failed", "error", ticketErrMsg(err)), true)
		return
	}
	respond(s, i, lang.T("user_added", "user", target.ID), false)
}

func handleTransfer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isStaff(i) {
		respond(s, i, lang.T("staff_only"), true)
		return
	}
	if Manager.Lookup(i.ChannelID) == nil {
		respond(s, i, lang.T("not_ticket_channel"), true)
		return
	}

	if err := Manager.Transfer(i.ChannelID, i.Member.User.ID, true); err != nil {
		respond(s, i, lang.T("transfer_failed", "error", ticketErrMsg(err)), true)
		return
	}
	respond(s, i, lang.T("transferred"), false)
}

func handleTicketStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isStaff(i) {
		respond(s, i, lang.T("staff_only"), true)
		return
	}

	st := Manager.Statistics()

	var perType string
	for _, info := range ticketTypes {
		perType += fmt.Sprintf("%s %s: %d\n", info.Emoji, info.Label, st.PerType[info.Type])
	}
	if perType == "" {
		perType = "—"
	}

	embed := &discordgo.MessageEmbed{
		Title: "📊 Ticket Statistics",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total", Value: strconv.Itoa(st.Total), Inline: true},
			{Name: "Open", Value: strconv.Itoa(st.Open), Inline: true},
			{Name: "Transferred", Value: strconv.Itoa(st.Transferred), Inline: true},
			{Name: "Closed", Value: strconv.Itoa(st.Closed), Inline: true},
			{Name: "By Type", Value: perType},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	respondEmbed(s, i, embed, true)
}
