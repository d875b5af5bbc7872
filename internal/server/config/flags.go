package config

import (
	"flag"
	"os"
	"time"

	"github.com/catforu/filestore/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-f string   public base URL for uploaded files
//	-q string   SQS queue URL for completion notifications
//	-t int      presigned upload URL validity, minutes
//	-r int      purge grace period, hours
//	-w int      sweep interval, hours
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e", "-f", "-q", "-t", "-r", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicURL, "f", config.S3PublicURL, "public base URL for uploaded files")
	fs.StringVar(&config.SQSQueueURL, "q", config.SQSQueueURL, "SQS queue URL")

	uploadValidity := fs.Int("t", int(config.UploadURLValidity.Minutes()), "upload URL validity (in minutes)")
	purgeGrace := fs.Int("r", int(config.PurgeGracePeriod.Hours()), "purge grace period (in hours)")
	sweepInterval := fs.Int("w", int(config.SweepInterval.Hours()), "sweep interval (in hours)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.UploadURLValidity = time.Duration(*uploadValidity) * time.Minute
	config.PurgeGracePeriod = time.Duration(*purgeGrace) * time.Hour
	config.SweepInterval = time.Duration(*sweepInterval) * time.Hour
}
