// Package main wires together the sync service binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/JakeFAU/searchconsole-sync/internal/config"
	"github.com/JakeFAU/searchconsole-sync/internal/scheduler"
	"github.com/JakeFAU/searchconsole-sync/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	runJob := flag.String("run", "", "Run one job and exit: daily or hourly")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	jobName, err := resolveJob(*runJob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	app, err := server.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}

	if jobName != "" {
		err = app.RunJob(ctx, jobName)
	} else {
		err = app.Run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// resolveJob maps the -run flag to a registered job name. Full job names are
// accepted as well.
func resolveJob(flagValue string) (string, error) {
	switch flagValue {
	case "":
		return "", nil
	case "daily", scheduler.JobDailySync:
		return scheduler.JobDailySync, nil
	case "hourly", scheduler.JobHourlySitemaps:
		return scheduler.JobHourlySitemaps, nil
	default:
		return "", fmt.Errorf("unknown -run value %q: want daily or hourly", flagValue)
	}
}
