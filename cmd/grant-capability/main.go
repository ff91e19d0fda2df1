package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dimitrije/querydraft/internal/config"
	"github.com/dimitrije/querydraft/internal/database"
	"github.com/dimitrije/querydraft/internal/services"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: grant-capability <email> <capability>")
		os.Exit(1)
	}

	email := os.Args[1]
	capability := strings.ToUpper(os.Args[2])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	permissionService := services.NewPermissionService(db)
	if err := permissionService.Grant(ctx, email, capability); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			log.Fatalf("No user found with email: %s", email)
		}
		log.Fatalf("Failed to grant capability: %v", err)
	}

	fmt.Printf("Granted %s to %s\n", capability, email)
}
