package main

import (
	"context"
	"log"
	"os"

	"github.com/fitshare-app/fitshare/internal/buildinfo"
	"github.com/fitshare-app/fitshare/internal/cli"
	"github.com/fitshare-app/fitshare/internal/cli/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
