// Command admin grants and revokes moderator access from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/models"
	"warden/internal/repository"
	"warden/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>   - Grant admin access")
	fmt.Println("  go run ./cmd/admin demote <user_id>    - Revoke admin access")
	fmt.Println("  go run ./cmd/admin list-admins         - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	users := service.NewUserService(db, repository.NewUserRepository(db), nil, nil)
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Invalid user id %q", os.Args[2])
		}
		setAdmin(ctx, users, uint(id), command == "promote")
	case "list-admins":
		listAdmins(ctx, users)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func setAdmin(ctx context.Context, users *service.UserService, id uint, admin bool) {
	current, err := users.GetUserByID(ctx, id)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			fmt.Printf("User with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}
	if current.IsAdmin == admin {
		fmt.Printf("User %s (ID: %d) already has is_admin=%t\n", current.Username, current.ID, admin)
		return
	}

	updated, err := users.SetAdmin(ctx, id, admin)
	if err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}
	verb := "demoted"
	if admin {
		verb = "promoted"
	}
	fmt.Printf("Successfully %s %s (ID: %d)\n", verb, updated.Username, updated.ID)
}

func listAdmins(ctx context.Context, users *service.UserService) {
	admins, err := users.ListAdmins(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}
	if len(admins) == 0 {
		fmt.Println("No admins found")
		return
	}

	fmt.Println("Current admins:")
	for _, admin := range admins {
		blocked := ""
		if admin.IsBlocked {
			blocked = " (blocked)"
		}
		fmt.Printf("  ID: %d | Username: %s | Email: %s%s\n", admin.ID, admin.Username, admin.Email, blocked)
	}
}
