package config

import (
	"encoding/json"
	"os"

	"github.com/catforu/filestore/internal/flagx"
	"github.com/catforu/filestore/internal/timex"
)

// JsonConfig is the DTO used only for reading JSON configuration files.
// Interval fields use timex.Duration so both "1h" strings and integer
// nanoseconds parse. After unmarshalling, values are copied into the runtime
// Config.
type JsonConfig struct {
	EndpointAddrHTTP  string         `json:"endpoint_addr_http"`
	DatabaseDSN       string         `json:"database_dsn"`
	SecretKey         string         `json:"secret_key"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3PublicURL       string         `json:"s3_public_url"`
	SQSQueueURL       string         `json:"sqs_queue_url"`
	UploadURLValidity timex.Duration `json:"upload_url_validity"`
	PurgeGracePeriod  timex.Duration `json:"purge_grace_period"`
	SweepInterval     timex.Duration `json:"sweep_interval"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config flags; when
// absent, no JSON file is loaded. An unreadable or invalid file panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3PublicURL = c.S3PublicURL
	config.SQSQueueURL = c.SQSQueueURL
	config.UploadURLValidity = c.UploadURLValidity.Duration
	config.PurgeGracePeriod = c.PurgeGracePeriod.Duration
	config.SweepInterval = c.SweepInterval.Duration
}
