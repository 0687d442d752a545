package main

import (
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}

	database, err := db.Open(cfg.DatabaseDSN())
	if err != nil {
		log.Fatal("database:", err)
	}
	defer database.Close()

	seedFiles := []string{
		"seed/schema.sql",
		"seed/campaigns.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("failed to read %s: %v", file, err)
		}
		if _, err := database.Exec(string(content)); err != nil {
			log.Fatalf("failed to execute %s: %v", file, err)
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	fmt.Println("Database seeding completed successfully!")
}
