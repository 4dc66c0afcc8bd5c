package config

import (
	"flag"
	"os"
	"time"

	"github.com/fitshare-app/fitshare/internal/flagx"
)

// parseFlags populates selected agent Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-a string   redis address
//	-w string   share capability base URL
//	-s string   share token HMAC secret key
//	-u string   user record reference to act as
//	-t int      reconcile interval, seconds
//	-k string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-a", "-w", "-s", "-u", "-t", "-k", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "a", config.RedisAddr, "redis address")
	fs.StringVar(&config.ShareBaseURL, "w", config.ShareBaseURL, "share base URL")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.UserRef, "u", config.UserRef, "user record reference")

	reconcileInterval := fs.Int("t", int(config.ReconcileInterval.Seconds()), "reconcile_interval (in seconds)")

	fs.StringVar(&config.S3AccessKey, "k", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ReconcileInterval = time.Duration(*reconcileInterval) * time.Second
}
