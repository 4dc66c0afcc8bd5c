package config

import (
	"encoding/json"
	"os"

	"github.com/fitshare-app/fitshare/internal/flagx"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
type JsonConfig struct {
	DatabaseDSN    string `json:"database_dsn"`
	RedisAddr      string `json:"redis_addr"`
	ShareBaseURL   string `json:"share_base_url"`
	SecretKey      string `json:"secret_key"`
	UserRef        string `json:"user_ref"`
	ContactsFile   string `json:"contacts_file"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, if any.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	config.DatabaseDSN = c.DatabaseDSN
	config.RedisAddr = c.RedisAddr
	config.ShareBaseURL = c.ShareBaseURL
	config.SecretKey = c.SecretKey
	config.UserRef = c.UserRef
	config.ContactsFile = c.ContactsFile
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
