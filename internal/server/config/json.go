package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/newsflow/internal/flagx"
	"github.com/dmitrijs2005/newsflow/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields (accepting both
// "30s" strings and integer nanoseconds) and ByteSize for size fields
// (accepting "512K" style suffixes).
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct.
type JsonConfig struct {
	EndpointAddr  string         `json:"endpoint_addr"`
	DatabaseDSN   string         `json:"database_dsn"`
	SiteName      string         `json:"site_name"`
	SecretKey     string         `json:"secret_key"`
	TokenValidity timex.Duration `json:"token_validity"`

	QueueCapacity int            `json:"queue_capacity"`
	Workers       int            `json:"workers"`
	QueueWait     timex.Duration `json:"queue_wait"`

	SyncSchedule  string         `json:"sync_schedule"`
	SyncTimeout   timex.Duration `json:"sync_timeout"`
	SweepSchedule string         `json:"sweep_schedule"`
	HeldTTL       timex.Duration `json:"held_ttl"`

	DefaultRetentionDays   int             `json:"default_retention_days"`
	DefaultMaxArticleBytes ByteSize        `json:"default_max_article_bytes"`
	GroupSettings          []jsonGroupRule `json:"group_settings"`

	Peers []jsonPeer `json:"peers"`

	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
}

type jsonGroupRule struct {
	Group           string   `json:"group"`
	Pattern         string   `json:"pattern"`
	RetentionDays   int      `json:"retention_days"`
	MaxArticleBytes ByteSize `json:"max_article_bytes"`
}

type jsonPeer struct {
	SiteName string   `json:"sitename"`
	Addr     string   `json:"addr"`
	Patterns []string `json:"patterns"`
	Schedule string   `json:"schedule"`
	Username string   `json:"username"`
	Password string   `json:"password"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config command-line
// flags; if neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics: a server must not
// start with a broken configuration file.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	applyJson(config, c)
}

func applyJson(config *Config, c *JsonConfig) {
	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SiteName != "" {
		config.SiteName = c.SiteName
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.TokenValidity.Duration != 0 {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.QueueCapacity != 0 {
		config.QueueCapacity = c.QueueCapacity
	}
	if c.Workers != 0 {
		config.Workers = c.Workers
	}
	if c.QueueWait.Duration != 0 {
		config.QueueWait = c.QueueWait.Duration
	}
	if c.SyncSchedule != "" {
		config.SyncSchedule = c.SyncSchedule
	}
	if c.SyncTimeout.Duration != 0 {
		config.SyncTimeout = c.SyncTimeout.Duration
	}
	if c.SweepSchedule != "" {
		config.SweepSchedule = c.SweepSchedule
	}
	if c.HeldTTL.Duration != 0 {
		config.HeldTTL = c.HeldTTL.Duration
	}
	if c.DefaultRetentionDays != 0 {
		config.DefaultRetentionDays = c.DefaultRetentionDays
	}
	if c.DefaultMaxArticleBytes != 0 {
		config.DefaultMaxArticleBytes = int64(c.DefaultMaxArticleBytes)
	}
	for _, r := range c.GroupSettings {
		config.GroupSettings = append(config.GroupSettings, GroupRule{
			Group:           r.Group,
			Pattern:         r.Pattern,
			RetentionDays:   r.RetentionDays,
			MaxArticleBytes: int64(r.MaxArticleBytes),
		})
	}
	for _, p := range c.Peers {
		config.Peers = append(config.Peers, PeerConfig(p))
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
