package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/makebelieve-sk/Messenger-sub000/internal/config"
	"github.com/makebelieve-sk/Messenger-sub000/internal/database"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/seed"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()
	if err := logger.Initialize(cfg.LogLevel, ""); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Parse command
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	db, err := database.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seeder := seed.NewSeeder(db)

	switch command {
	case "dev":
		run(db, seeder.SeedDev, "Development database seeded")
	case "test":
		run(db, seeder.SeedTest, "Test database seeded")
	case "clean":
		run(db, seeder.Clean, "Seed data cleaned")
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}
}

func run(db *gorm.DB, fn func() error, success string) {
	if err := fn(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println(success)
}
