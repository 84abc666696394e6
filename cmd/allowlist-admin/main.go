package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dimitrije/toolshare/internal/config"
	"github.com/dimitrije/toolshare/internal/database"
	"github.com/dimitrije/toolshare/internal/services"
	"github.com/dimitrije/toolshare/pkg/logger"
	"github.com/google/uuid"
)

const usage = `Usage:
  allowlist-admin add <email>             allow an email to sign in
  allowlist-admin remove <email>          remove an email from the allow-list
  allowlist-admin check <email>           report whether an email may sign in
  allowlist-admin list                    print every allow-listed email
  allowlist-admin token <user-id> <email> mint an access token for local testing`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	if os.Args[1] == "token" {
		mintToken(cfg, os.Args[2:])
		return
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	allowlist := services.NewAllowlistService(db)

	switch os.Args[1] {
	case "add":
		email := requireArg(2)
		if err := allowlist.Add(ctx, email, "admin"); err != nil {
			logger.Fatalf("Failed to add %s: %v", email, err)
		}
		fmt.Printf("Added %s to the allow-list\n", email)

	case "remove":
		email := requireArg(2)
		removed, err := allowlist.Remove(ctx, email)
		if err != nil {
			logger.Fatalf("Failed to remove %s: %v", email, err)
		}
		if !removed {
			logger.Fatalf("No allow-list entry for %s", email)
		}
		fmt.Printf("Removed %s from the allow-list\n", email)

	case "check":
		email := requireArg(2)
		allowed, err := allowlist.IsAllowed(ctx, email)
		if err != nil {
			logger.Fatalf("Failed to check %s: %v", email, err)
		}
		if !allowed {
			fmt.Printf("%s is not allowed\n", email)
			os.Exit(1)
		}
		user, err := services.NewUserService(db).GetByEmail(ctx, email)
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			fmt.Printf("%s is allowed (not signed in yet)\n", email)
		case err != nil:
			logger.Fatalf("Failed to look up %s: %v", email, err)
		default:
			fmt.Printf("%s is allowed (user %s)\n", email, user.ID)
		}

	case "list":
		entries, err := allowlist.List(ctx)
		if err != nil {
			logger.Fatalf("Failed to list allow-list: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tSOURCE\tADDED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Email, e.Source, e.CreatedAt.Format("2006-01-02 15:04"))
		}
		_ = w.Flush()

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func requireArg(i int) string {
	if len(os.Args) <= i {
		fmt.Println(usage)
		os.Exit(1)
	}
	return os.Args[i]
}

func mintToken(cfg *config.Config, args []string) {
	if len(args) != 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		logger.Fatalf("Refusing to mint tokens in production")
	}

	userID, err := uuid.Parse(args[0])
	if err != nil {
		logger.Fatalf("Invalid user id: %v", err)
	}

	token, err := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry).GenerateAccessToken(userID, args[1])
	if err != nil {
		logger.Fatalf("Failed to generate token: %v", err)
	}
	fmt.Println(token)
}
