package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/newsflow/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   listen address for the NNTP endpoint (e.g., ":119")
//	-d string   PostgreSQL DSN
//	-n string   site name used in Path headers and generated Message-IDs
//	-s string   HMAC secret key for session tokens
//	-q int      intake queue capacity
//	-w int      intake worker count
//	-t int      session token validity, minutes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-n", "-s", "-q", "-w", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SiteName, "n", config.SiteName, "site name")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.IntVar(&config.QueueCapacity, "q", config.QueueCapacity, "intake queue capacity")
	fs.IntVar(&config.Workers, "w", config.Workers, "intake worker count")

	tokenValidity := fs.Int("t", int(config.TokenValidity.Minutes()), "token validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidity = time.Duration(*tokenValidity) * time.Minute
}
