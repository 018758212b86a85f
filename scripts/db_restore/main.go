package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/garnizeh/qaforum/internal/config"
	"github.com/garnizeh/qaforum/internal/db"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	in := flag.String("in", "", "Backup file (default: <database>.bak)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	src := *in
	if src == "" {
		src = cfg.DatabasePath + ".bak"
	}

	// The server must be stopped; the live file is replaced in place.
	if err := db.Restore(context.Background(), src, cfg.DatabasePath); err != nil {
		fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database restore completed from %s\n", src)
}
