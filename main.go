package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-bot/bot"
	"ticket-bot/config"
	"ticket-bot/events"
	"ticket-bot/handlers"
	"ticket-bot/lang"
	"ticket-bot/storage"
	"ticket-bot/ticket"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to config file")
	cleanup := flag.Bool("cleanup", false, "Remove slash commands on shutdown")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Token == "" || cfg.Token == "YOUR_DISCORD_BOT_TOKEN_HERE" {
		log.Fatal("Set your bot token in config.json (\"token\") or DISCORD_BOT_TOKEN")
	}

	lang.Load(cfg.LangFile)

	store := ticket.NewStore(cfg.Settings.DataFile)
	if err := store.Load(); err != nil {
		log.Fatalf("Failed to load ticket store: %v", err)
	}

	b, err := bot.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	platform := bot.NewPlatform(b.Session, cfg.GuildID, cfg.StaffRoleID, handlers.TicketControls())
	limiter := ticket.NewRateLimiter(time.Duration(cfg.Settings.RateLimitSeconds) * time.Second)

	mgr := ticket.NewManager(store, platform, limiter, ticket.Config{
		SupportCategoryID:     cfg.Categories.Support,
		PartnershipCategoryID: cfg.Categories.Partnership,
		TransferCategoryID:    cfg.Categories.Transfer,
		TranscriptsChannelID:  cfg.TranscriptsChannelID,
		MaxTicketsPerUser:     cfg.Settings.MaxTicketsPerUser,
	})

	if db, err := storage.InitDB(&cfg.Database); err != nil {
		log.Printf("WARNING: Audit database init failed (%v). Lifecycle events will not be recorded.", err)
	} else {
		defer db.Close()
		mgr.WithAudit(db)
	}

	if cfg.Events.Enabled {
		pub, err := events.NewRabbitPublisher(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			log.Printf("WARNING: Event publisher init failed (%v). Lifecycle events will not be published.", err)
		} else {
			defer pub.Close()
			mgr.WithPublisher(pub)
		}
	}

	handlers.Init(cfg, mgr)
	handlers.Register(b.Session)

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}
	defer b.Stop()

	// Reconcile persisted tickets with Discord before taking commands.
	b.WaitReady()
	if err := mgr.RestoreAfterRestart(); err != nil {
		log.Printf("WARNING: Restart reconciliation incomplete: %v", err)
	}

	registered := b.RegisterCommands(handlers.Commands())

	log.Println("Bot is running. Press Ctrl+C to exit.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	if *cleanup {
		b.CleanupCommands(registered)
	}
}
