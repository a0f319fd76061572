// Command housekeeperd runs the housekeeper daemon in the foreground
// without the CLI wrapper. Service managers that supervise processes
// directly (systemd units, launchd daemons) point at this binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"housekeeper/internal/config"
	"housekeeper/internal/daemonrun"
)

func main() {
	configPath, logLevel, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: logLevel}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (configPath, logLevel string, err error) {
	fs := flag.NewFlagSet("housekeeperd", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Configuration file path")
	fs.StringVar(&logLevel, "log-level", "", "Override the configured log level")
	err = fs.Parse(args)
	return configPath, logLevel, err
}
