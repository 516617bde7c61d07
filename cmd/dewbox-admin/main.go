// Command dewbox-admin runs operator tasks against the contribution ledger: schema
// migration, classification previews, yearly interest, and the admin summary.
package main

import (
	"log"
	_ "time/tzdata"

	"github.com/dewbox/contribution-service/internal/cli"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cli.Execute(version)
}
