package handlers

import (
	"errors"
	"log"

	"ticket-bot/config"
	"ticket-bot/lang"
	"ticket-bot/ticket"

	"github.com/bwmarrin/discordgo"
)

var (
	Cfg     *config.Config
	Manager *ticket.Manager
)

// Init hands the handlers their collaborators. Called once from main
// before Register.
func Init(cfg *config.Config, mgr *ticket.Manager) {
	Cfg = cfg
	Manager = mgr
}

func Register(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.GuildID == "" {
			return
		}

		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			handleSlashCommand(s, i)
		case discordgo.InteractionMessageComponent:
			handleComponent(s, i)
		case discordgo.InteractionModalSubmit:
			handleModal(s, i)
		}
	})
}

func Commands() []*discordgo.ApplicationCommand {
	return ticketCommands()
}

func handleSlashCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name

	switch name {
	case "ticket":
		handleTicketCommand(s, i)
	case "close":
		handleCloseCommand(s, i)
	case "add":
		handleAddUser(s, i)
	case "transfer":
		handleTransfer(s, i)
	default:
		log.Printf("Unknown command: %s", name)
	}
}

func handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	switch customID {
	case "ticket_type_select":
		handleTypeSelect(s, i)
	case "ticket_close_btn":
		handleCloseButton(s, i)
	case "ticket_close_reason_btn":
		handleCloseReasonButton(s, i)
	case "ticket_close_confirm":
		handleCloseConfirm(s, i)
	case "ticket_close_cancel":
		handleCloseCancel(s, i)
	default:
		log.Printf("Unknown component: %s", customID)
	}
}

func handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ModalSubmitData().CustomID {
	case "ticket_close_modal":
		handleCloseModal(s, i)
	default:
		log.Printf("Unknown modal: %s", i.ModalSubmitData().CustomID)
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		log.Printf("Failed to respond: %v", err)
	}
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func followup(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, _ = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		m[opt.Name] = opt
	}
	return m
}

func subOptMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func optStr(m map[string]*discordgo.ApplicationCommandInteractionDataOption, key, def string) string {
	if o, ok := m[key]; ok {
		return o.StringValue()
	}
	return def
}

func hasRole(member *discordgo.Member, roleID string) bool {
	if member == nil || roleID == "" {
		return false
	}
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

func isStaff(i *discordgo.InteractionCreate) bool {
	if isAdmin(i) {
		return true
	}
	return hasRole(i.Member, Cfg.StaffRoleID)
}

// ticketErrMsg maps lifecycle errors to short user-facing messages.
func ticketErrMsg(err error) string {
	switch {
	case errors.Is(err, ticket.ErrRateLimited):
		return lang.T("rate_limited")
	case errors.Is(err, ticket.ErrTicketLimitExceeded):
		return lang.T("ticket_limit")
	case errors.Is(err, ticket.ErrNotFound):
		return lang.T("ticket_not_found")
	case errors.Is(err, ticket.ErrForbidden):
		return lang.T("no_permission")
	case errors.Is(err, ticket.ErrAlreadyClosed):
		return lang.T("already_closed")
	default:
		return lang.T("internal_error", "error", err.Error())
	}
}
