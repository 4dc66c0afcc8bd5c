package main

import (
	"context"
	"log"

	"github.com/fitshare-app/fitshare/internal/agent"
	"github.com/fitshare-app/fitshare/internal/agent/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := agent.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
