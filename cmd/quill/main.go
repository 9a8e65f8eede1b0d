package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quillfeed/quill/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional, defaults to ~/.config/quill/config.toml)")
	apiURL := flag.String("api", "", "blog API base URL (optional, overrides api_url)")
	checkSeconds := flag.Int("check", 0, "session check interval in seconds (optional, defaults to 15s)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{ConfigPath: *configPath, APIURL: *apiURL}
	if check := *checkSeconds; check > 0 {
		opts.CheckEvery = check
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "quill: %v\n", err)
		return 1
	}
	return 0
}
