package main

import (
	"log"

	"github.com/MrSnakeDoc/sigdesk/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ sigdesk failed to start: %v", err)
	}
}
