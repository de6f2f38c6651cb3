package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pkg "git.solsynth.dev/hypernet/confession/pkg/internal"
	localCache "git.solsynth.dev/hypernet/confession/pkg/internal/cache"
	"git.solsynth.dev/hypernet/confession/pkg/internal/database"
	"git.solsynth.dev/hypernet/confession/pkg/internal/gap"
	"git.solsynth.dev/hypernet/confession/pkg/internal/http"
	"git.solsynth.dev/hypernet/confession/pkg/internal/identity"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Booting screen
	fmt.Println(color.YellowString("  ____             __               _\n / ___|___  _ __  / _| ___  ___ ___(_) ___  _ __\n| |   / _ \\| '_ \\| |_ / _ \\/ __/ __| |/ _ \\| '_ \\\n| |__| (_) | | | |  _|  __/\\__ \\__ \\ | (_) | | | |\n \\____\\___/|_| |_|_|  \\___||___/___/_|\\___/|_| |_|"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("Confession"), pkg.AppVersion)
	fmt.Printf("The anonymous confession sharing service\n")
	color.HiBlack("=====================================================\n")

	// Configure settings
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("An error occurred when loading .env file...")
	}
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("confession")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}
	if viper.GetBool("debug.enabled") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Connect to nats
	if err := gap.InitializeToNats(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connecting to nats...")
	}

	// Load identity secret
	if secret := viper.GetString("security.identity_secret"); len(secret) == 0 {
		log.Warn().Msg("No identity secret configured. Authentication related features will be disabled.")
	} else if err := identity.CheckSecret(secret); err != nil {
		log.Fatal().Err(err).Msg("Refusing to start with the configured identity secret.")
	} else {
		http.IVerifier = identity.NewVerifier(secret, viper.GetString("security.identity_issuer"))
		log.Info().Msg("Identity verifier loaded.")
	}

	// Initialize cache
	if err := localCache.NewStore(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when initializing cache.")
	}

	// Connect to store
	hub := store.NewHub()
	if err := connectStore(hub); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connecting to store.")
	}

	var bridge *gap.Bridge
	if gap.Nc != nil {
		var err error
		if bridge, err = gap.NewBridge(gap.Nc, hub); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when bridging store changes over nats...")
		}
	}

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	quartz.AddFunc("@every 60m", services.DoAutoNotificationCleanup)
	if schedule := viper.GetString("reconcile.schedule"); len(schedule) > 0 {
		if _, err := quartz.AddFunc(schedule, services.DoCounterAudit); err != nil {
			log.Fatal().Err(err).Str("schedule", schedule).Msg("An error occurred when scheduling counter audit...")
		}
	}
	quartz.Start()

	// Server
	server := http.NewServer()
	go server.Listen()
	log.Info().Str("bind", viper.GetString("bind")).Msg("Server is listening...")

	// Messages
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	<-quartz.Stop().Done()
	if err := server.Shutdown(); err != nil {
		log.Error().Err(err).Msg("An error occurred when shutting down server...")
	}
	if bridge != nil {
		_ = bridge.Close()
	}
	if gap.Nc != nil {
		gap.Nc.Close()
	}
	if err := store.C.Close(); err != nil {
		log.Error().Err(err).Msg("An error occurred when closing store...")
	}
}

func connectStore(hub *store.Hub) error {
	switch driver := viper.GetString("store.driver"); driver {
	case "", "memory":
		store.C = store.NewMemory(hub)
		log.Warn().Msg("Using the in-memory store, data will be lost on exit.")
	case "postgres":
		if err := database.NewGorm(); err != nil {
			return err
		} else if err := database.RunMigration(database.C); err != nil {
			return fmt.Errorf("unable to run database auto migration: %v", err)
		}
		store.C = store.NewGorm(database.C, hub)
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := store.ConnectMongo(ctx, viper.GetString("mongo.uri"))
		if err != nil {
			return err
		}
		store.C = store.NewMongo(client, viper.GetString("mongo.database"), hub)
	default:
		return fmt.Errorf("unknown store driver %q", driver)
	}
	log.Info().Str("driver", viper.GetString("store.driver")).Msg("Store is ready.")
	return nil
}
