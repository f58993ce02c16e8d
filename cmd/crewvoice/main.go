// crewvoice - voice channel automute and match narratives for social deduction games
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/bwmarrin/discordgo"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ernie/crewvoice/internal/api"
	"github.com/ernie/crewvoice/internal/auth"
	"github.com/ernie/crewvoice/internal/automute"
	"github.com/ernie/crewvoice/internal/collector"
	"github.com/ernie/crewvoice/internal/config"
	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/leaderboard"
	"github.com/ernie/crewvoice/internal/matchlog"
	"github.com/ernie/crewvoice/internal/narrative"
	"github.com/ernie/crewvoice/internal/ranks"
	"github.com/ernie/crewvoice/internal/storage"
	"github.com/ernie/crewvoice/internal/voice"
)

var version = "dev"

const (
	defaultConfigPath = "/etc/crewvoice/config.yml"
	guildReadyTimeout = 30 * time.Second
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "narrate":
		cmdNarrate(os.Args[2:])
	case "leaderboard":
		cmdLeaderboard(os.Args[2:])
	case "link":
		cmdLink(os.Args[2:])
	case "unlink":
		cmdUnlink(os.Args[2:])
	case "hash-password":
		cmdHashPassword(os.Args[2:])
	case "version":
		fmt.Printf("crewvoice %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: crewvoice <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                               Start the bot, event ingress and HTTP API")
	fmt.Println("  narrate <match-id>                  Print the play-by-play of a recorded match")
	fmt.Println("  leaderboard [--top N]               Show top players (default: 20)")
	fmt.Println("  link <name> <discord-id>            Link a player to a Discord user")
	fmt.Println("  unlink <name>                       Remove a player's Discord link")
	fmt.Println("  hash-password                       Hash an admin password for the config file")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/crewvoice/config.yml)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  crewvoice serve --config /etc/crewvoice/config.yml")
	fmt.Println("  crewvoice narrate 1780")
	fmt.Println("  crewvoice leaderboard --top 50")
}

// loadConfig loads the configuration or exits
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// openStore opens the leaderboard database or exits
func openStore(cfg *config.Config) *storage.Store {
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func newBuilder(cfg *config.Config) (*narrative.Builder, narrative.Glyphs) {
	glyphs := narrative.GlyphsFromConfig(cfg.Narrative)
	return narrative.NewBuilder(narrative.Options{
		Glyphs:         glyphs,
		MaxTasks:       cfg.Narrative.MaxTasks,
		MaxBlockLength: cfg.Narrative.MaxBlockLength,
	}), glyphs
}

// cmdServe starts the bot
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if cfg.Discord.Token == "" {
		log.Fatalf("No Discord token configured. Set DISCORD_BOT_TOKEN or discord.token.")
	}

	log.Printf("crewvoice %s starting...", version)
	log.Printf("Watching %d game channels", len(cfg.Channels))

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	log.Printf("Database initialized at %s", cfg.Database.Path)

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers

	discord := voice.NewDiscord(dg, cfg.Discord.GuildID)
	channels := voice.NewChannels(cfg.Channels)
	discord.TrackVoiceStates(channels)
	guildReady := waitForGuild(dg, cfg.Discord.GuildID)

	builder, glyphs := newBuilder(cfg)
	matches := matchlog.NewDir(cfg.Matches.Dir)
	publisher := collector.NewDiscordPublisher(discord, glyphs, cfg.Discord.MatchLogsChannel, matches, builder)
	publisher.RegisterInteractions(dg)

	reconciler := automute.New(automute.Options{
		Enabled:            cfg.Automute.IsEnabled(),
		MaxConcurrentEdits: cfg.Automute.MaxConcurrentEdits,
		MeetingEndDelay:    cfg.Automute.MeetingEndDelay,
		NotifyUnmatched:    cfg.Automute.NotifyUnmatched,
		Notifier:           discord,
	})

	manager := collector.NewManager(collector.Deps{
		Channels:     channels,
		Resolver:     voice.NewResolver(channels, cfg.Automute.Ratio),
		Automute:     reconciler,
		Linker:       collector.NewLinker(store, cfg.Automute.Ratio),
		Store:        store,
		Matches:      matches,
		Builder:      builder,
		Publisher:    publisher,
		Ranks:        ranks.NewSynchronizer(ranks.NewLadder(cfg.Ranks.RolePrefix, cfg.Ranks.Tiers), discord),
		PollAttempts: cfg.Matches.PollAttempts,
		PollInterval: cfg.Matches.PollInterval,
	})

	if err := dg.Open(); err != nil {
		log.Fatalf("Failed to connect to Discord: %v", err)
	}
	defer dg.Close()

	select {
	case <-guildReady:
		log.Printf("Connected to guild %s", cfg.Discord.GuildID)
	case <-time.After(guildReadyTimeout):
		log.Printf("Warning: guild %s not available after %v, voice snapshots start empty", cfg.Discord.GuildID, guildReadyTimeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.Prepare(ctx, discord)

	// Event ingress
	eventAddr := net.JoinHostPort(cfg.Server.ListenAddr, strconv.Itoa(cfg.Server.EventPort))
	events := collector.NewEventServer(eventAddr, manager, cfg.Server.MaxEvent, cfg.Server.ReadTimeout)
	if err := events.Start(ctx); err != nil {
		log.Fatalf("Failed to start event ingress: %v", err)
	}

	var natsIngress *collector.NATSIngress
	if cfg.NATS.URL != "" {
		natsIngress = collector.NewNATSIngress(cfg.NATS.URL, cfg.NATS.Subject, manager)
		if err := natsIngress.Start(ctx); err != nil {
			log.Fatalf("Failed to start NATS ingress: %v", err)
		}
	}

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if cfg.Auth.JWTSecret == "" || cfg.Auth.AdminPassword == "" {
		log.Printf("Warning: admin login disabled (jwt secret or admin password hash not configured)")
	}

	router := api.NewRouter(store, manager, authService)
	router.StartWebSocketHub(ctx)

	addr := net.JoinHostPort(cfg.Server.ListenAddr, strconv.Itoa(cfg.Server.HTTPPort))
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		log.Fatalf("HTTP server error: %v", err)
	}

	// Sequential shutdown
	log.Println("Shutting down HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping event ingress...")
	if natsIngress != nil {
		natsIngress.Stop()
	}
	cancel()
	events.Stop()

	if err := store.Persist(context.Background()); err != nil {
		log.Printf("Error persisting leaderboard: %v", err)
	}
	log.Println("Shutdown complete")
}

// waitForGuild returns a channel closed once the configured guild's state
// (including voice states) has been received
func waitForGuild(dg *discordgo.Session, guildID string) <-chan struct{} {
	ready := make(chan struct{})
	var once sync.Once
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if g.ID == guildID {
			once.Do(func() { close(ready) })
		}
	})
	return ready
}

// cmdNarrate prints the narrative of a recorded match
func cmdNarrate(args []string) {
	fs := flag.NewFlagSet("narrate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	dir := fs.String("dir", "", "match record directory (default: from config)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: usage: crewvoice narrate <match-id>\n")
		os.Exit(1)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid match id %q\n", fs.Arg(0))
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *dir != "" {
		cfg.Matches.Dir = *dir
	}
	builder, _ := newBuilder(cfg)
	matches := matchlog.NewDir(cfg.Matches.Dir)

	ctx := context.Background()
	m, err := matches.Match(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	events, err := matches.Events(ctx, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(builder.Build(m, events).Text())
}

// cmdLeaderboard prints the top rated players
func cmdLeaderboard(args []string) {
	fs := flag.NewFlagSet("leaderboard", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	limit := fs.Int("top", 20, "number of top players to show")
	fs.Parse(args)

	store := openStore(loadConfig(*configPath))
	defer store.Close()

	entries, err := store.Top(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printLeaderboard(entries)
}

func printLeaderboard(entries []domain.LeaderboardEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLAYER\tMMR\tCREW\tIMP\tGAMES\tWINS\tLINKED")
	fmt.Fprintln(w, "----\t------\t---\t----\t---\t-----\t----\t------")

	for _, e := range entries {
		linked := "no"
		if e.Linked() {
			linked = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%.0f\t%.0f\t%.0f\t%d\t%d\t%s\n",
			e.Rank, e.Name, e.MMR, e.CrewmateMMR, e.ImpostorMMR, e.Games, e.Wins, linked)
	}

	w.Flush()
}

// cmdLink links a player to a Discord user, creating the player if needed
func cmdLink(args []string) {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Error: usage: crewvoice link <name> <discord-id>\n")
		os.Exit(1)
	}
	name, discordID := fs.Arg(0), fs.Arg(1)
	if _, err := strconv.ParseUint(discordID, 10, 64); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid discord id %q\n", discordID)
		os.Exit(1)
	}

	store := openStore(loadConfig(*configPath))
	defer store.Close()
	ctx := context.Background()

	entry, created, err := leaderboard.EnsurePlayer(ctx, store, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := store.LinkDiscord(ctx, entry.Name, discordID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := store.Persist(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if created {
		fmt.Printf("Created player %s\n", entry.Name)
	}
	fmt.Printf("Linked %s to %s\n", entry.Name, discordID)
}

// cmdUnlink removes a player's Discord link
func cmdUnlink(args []string) {
	fs := flag.NewFlagSet("unlink", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: usage: crewvoice unlink <name>\n")
		os.Exit(1)
	}

	store := openStore(loadConfig(*configPath))
	defer store.Close()
	ctx := context.Background()

	if err := store.UnlinkDiscord(ctx, fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := store.Persist(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Unlinked %s\n", fs.Arg(0))
}

// cmdHashPassword prompts for a password and prints its bcrypt hash
func cmdHashPassword(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	fs.Parse(args)

	hash, err := promptPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}
