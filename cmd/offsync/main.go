package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/offsync/internal/app"
	"github.com/dmitrijs2005/offsync/internal/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	a, err := app.NewApp(ctx, cfg, os.Stderr)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	a.Run(ctx, os.Stdin)

}
