// Command maizone runs the qzone bot: a poll loop that reacts to friends'
// posts, a daily posting schedule, and one-shot subcommands for manual use.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/internetsb/Maizone/internal/app"
	"github.com/internetsb/Maizone/internal/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// A .env next to the binary can fill in API keys during development.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := loadConfig()
	applyEnvOverrides(cfg)

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		a.Start(ctx)
		<-ctx.Done()
		log.Println("Shutting down...")
		a.Stop()
	case "post":
		topic := ""
		if len(os.Args) > 2 {
			topic = os.Args[2]
		}
		if err := a.SendPost(ctx, topic); err != nil {
			log.Fatalf("Post failed: %v", err)
		}
	case "read":
		if len(os.Args) < 3 {
			fmt.Println("Usage: maizone read <friend-qq> [count]")
			os.Exit(1)
		}
		count := 5
		if len(os.Args) > 3 {
			n, err := strconv.Atoi(os.Args[3])
			if err != nil || n <= 0 {
				log.Fatalf("Invalid count: %s", os.Args[3])
			}
			count = n
		}
		if err := a.ReadFriend(ctx, os.Args[2], count); err != nil {
			log.Fatalf("Read failed: %v", err)
		}
	case "login":
		if err := a.Login(ctx); err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		log.Println("Credentials refreshed")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: maizone <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run            Run the bot (poll loop + posting schedule)")
	fmt.Println("  post [topic]   Generate and publish one post now")
	fmt.Println("  read <qq> [n]  React to a friend's recent posts now")
	fmt.Println("  login          Refresh credentials through the strategy chain")
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			// First run, write out the defaults for the user to edit.
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				log.Printf("Warning: could not save default config: %v", err)
			} else {
				path, _ := config.ConfigPath()
				log.Printf("Created default config at: %s", path)
			}
		} else {
			log.Printf("Warning: could not load config: %v (using defaults)", err)
			cfg = config.Default()
		}
	}
	return cfg
}

// applyEnvOverrides lets secrets stay out of the config file.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("MAIZONE_UIN"); v != "" {
		cfg.Account.UIN = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("SILICONFLOW_API_KEY"); v != "" {
		cfg.Images.APIKey = v
	}
	if v := os.Getenv("NAPCAT_TOKEN"); v != "" {
		cfg.Napcat.Token = v
	}
}
