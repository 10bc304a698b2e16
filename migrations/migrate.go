package main

import (
	"log"
	"os"

	"autoinvest/src/config"
	"autoinvest/src/database"
	aws_handler "autoinvest/src/utils/aws"
)

func main() {
	cfg, err := config.LoadConfig("./settings", os.Getenv("ENV"))
	if err != nil {
		log.Fatalf("Error loading config for environment: %v", err)
	}
	if err := aws_handler.ResolveSQLPassword(cfg); err != nil {
		log.Fatalf("Error resolving database password: %v", err)
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if err := database.Migrate(&cfg.Databases.SQL, "./migrations", command); err != nil {
		log.Fatal(err)
	}

	log.Println("Database migration completed successfully")
}
