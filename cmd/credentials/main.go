package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/relia/scheduler/internal/config"
	"github.com/relia/scheduler/internal/core/services"
	"github.com/relia/scheduler/internal/infrastructure/store"
	"golang.org/x/term"
)

// Manages the device credentials file and pushes it to the store. The server
// does the same push on startup; the push subcommand is for updating a
// running deployment without a restart.

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: credentials <command> [args]

Commands:
  add <device>      add or replace a device entry (prompts for password)
  check <device>    verify a password against the stored entry
  list              print all device names in the file
  remove <device>   delete a device entry
  push              push the file contents to the store
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	configPath := "config/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = "../config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	credsPath := cfg.Scheduler.CredentialsFile

	creds, err := services.LoadCredentialFile(credsPath)
	if err != nil {
		log.Fatalf("failed to load credentials file: %v", err)
	}

	switch os.Args[1] {
	case "add":
		device := deviceArg()
		if len(device) < 3 {
			log.Fatal("device identifier must be at least 3 characters")
		}
		password := promptPassword("Password for " + device + ": ")
		if len(password) < 8 {
			log.Fatal("password must be at least 8 characters")
		}
		confirm := promptPassword("Confirm password: ")
		if password != confirm {
			log.Fatal("passwords do not match")
		}
		salt, err := services.NewSalt()
		if err != nil {
			log.Fatalf("failed to generate salt: %v", err)
		}
		creds[device] = salt + "$" + services.HashPassword(salt, password)
		if err := services.SaveCredentialFile(credsPath, creds); err != nil {
			log.Fatalf("failed to save credentials file: %v", err)
		}
		if err := pushToStore(cfg, creds); err != nil {
			log.Printf("saved to file, but store push failed (run `credentials push` later): %v", err)
		}
		fmt.Printf("added %s\n", device)

	case "check":
		device := deviceArg()
		entry, ok := creds[device]
		if !ok {
			log.Fatalf("no entry for %s", device)
		}
		password := promptPassword("Password for " + device + ": ")
		salt, hash, found := strings.Cut(entry, "$")
		if !found {
			log.Fatalf("malformed entry for %s", device)
		}
		if services.HashPassword(salt, password) != hash {
			log.Fatal("password does not match")
		}
		fmt.Println("password matches")

	case "list":
		for device := range creds {
			fmt.Println(device)
		}

	case "remove":
		device := deviceArg()
		if _, ok := creds[device]; !ok {
			log.Fatalf("no entry for %s", device)
		}
		delete(creds, device)
		if err := services.SaveCredentialFile(credsPath, creds); err != nil {
			log.Fatalf("failed to save credentials file: %v", err)
		}
		if err := pushToStore(cfg, creds); err != nil {
			log.Printf("removed from file, but store push failed (run `credentials push` later): %v", err)
		}
		fmt.Printf("removed %s\n", device)

	case "push":
		if err := pushToStore(cfg, creds); err != nil {
			log.Fatalf("failed to push credentials: %v", err)
		}
		fmt.Printf("pushed %d device(s)\n", len(creds))

	default:
		usage()
	}
}

func pushToStore(cfg *config.Config, creds services.CredentialFile) error {
	st := store.NewRedisStore(cfg.Redis)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	keys := store.NewKeys(cfg.Scheduler.BaseKey)
	return services.PushCredentials(ctx, st, keys, creds)
}

func deviceArg() string {
	if len(os.Args) < 3 || os.Args[2] == "" {
		usage()
	}
	return os.Args[2]
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("failed to read password: %v", err)
	}
	return string(raw)
}
