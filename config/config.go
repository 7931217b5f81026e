package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"` // postgres, sqlite
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"content_pulse"`
	DBPath     string `envconfig:"DB_PATH" default:"data/content-pulse.db"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Cron-Jobs, leerer String deaktiviert den Job
	HealthCronSchedule string `envconfig:"HEALTH_CRON_SCHEDULE" default:"0 3 * * *"`
	ScoreCronSchedule  string `envconfig:"CRON_SCHEDULE" default:"0 4 * * 1"`

	// Generativer Dienst (Anthropic über llmkit)
	AnthropicAPIKey string  `envconfig:"ANTHROPIC_API_KEY"`
	LLMMaxTokens    int     `envconfig:"LLM_MAX_TOKENS" default:"1500"`
	LLMTemperature  float64 `envconfig:"LLM_TEMPERATURE" default:"0.3"`

	// Erreichbarkeitsprüfung
	ProbeTimeout   time.Duration `envconfig:"PROBE_TIMEOUT" default:"10s"`
	ProbeUserAgent string        `envconfig:"PROBE_USER_AGENT" default:"Mozilla/5.0 (compatible; LinkHealthBot/1.0)"`

	// Link-Generierung
	LinksRequireWhitelist bool   `envconfig:"LINKS_REQUIRE_WHITELIST" default:"true"`
	LinksMaxPerDomain     int    `envconfig:"LINKS_MAX_PER_DOMAIN" default:"2"`
	LinksTargetPerArticle int    `envconfig:"LINKS_TARGET_PER_ARTICLE" default:"2"`
	WhitelistPath         string `envconfig:"WHITELIST_PATH"`

	// Batch-Größen und Pausen pro Operation
	ScoreBatchSize    int           `envconfig:"BATCH_SIZE" default:"10"`
	LinksBatchSize    int           `envconfig:"LINKS_BATCH_SIZE" default:"5"`
	LinksBatchDelay   time.Duration `envconfig:"LINKS_BATCH_DELAY" default:"5s"`
	HealthBatchSize   int           `envconfig:"HEALTH_BATCH_SIZE" default:"50"`
	SuggestBatchSize  int           `envconfig:"SUGGEST_BATCH_SIZE" default:"3"`
	SuggestBatchDelay time.Duration `envconfig:"SUGGEST_BATCH_DELAY" default:"2s"`

	// Schwellenwerte, Umgebungsvariablen mit Präfix SCORE_
	Score ScoreConfig

	// Reports (CSV) lokal und optional in S3
	ReportDir      string `envconfig:"REPORT_DIR" default:"reports"`
	ReportKeep     int    `envconfig:"REPORT_KEEP" default:"10"`
	ReportS3Key    string `envconfig:"REPORT_S3_KEY"`
	ReportS3Secret string `envconfig:"REPORT_S3_SECRET"`
	ReportS3URL    string `envconfig:"REPORT_S3_URL"`
	ReportS3Region string `envconfig:"REPORT_S3_REGION" default:"eu-central-1"`
	ReportS3Bucket string `envconfig:"REPORT_S3_BUCKET"`
}

// ScoreConfig bündelt die produktseitigen Schwellenwerte der Bewertung.
type ScoreConfig struct {
	Excellent float64 `envconfig:"EXCELLENT" default:"9.8"`
	Good      float64 `envconfig:"GOOD" default:"9.0"`
	NeedsWork float64 `envconfig:"NEEDS_WORK" default:"8.0"`

	SpeakableMinWords int `envconfig:"SPEAKABLE_MIN_WORDS" default:"40"`
	SpeakableMaxWords int `envconfig:"SPEAKABLE_MAX_WORDS" default:"60"`

	// Linkdichte: verifizierte Links pro 1000 Wörter und die Punkte je Stufe
	LinksFullPer1000    float64 `envconfig:"LINKS_FULL_PER_1000" default:"2"`
	LinksPartialPer1000 float64 `envconfig:"LINKS_PARTIAL_PER_1000" default:"1"`
	LinksFullScore      float64 `envconfig:"LINKS_FULL_SCORE" default:"2.0"`
	LinksPartialScore   float64 `envconfig:"LINKS_PARTIAL_SCORE" default:"1.0"`
	LinksLowScore       float64 `envconfig:"LINKS_LOW_SCORE" default:"0.5"`

	VoiceCap    float64 `envconfig:"CAP_VOICE" default:"2.0"`
	SchemaCap   float64 `envconfig:"CAP_SCHEMA" default:"1.5"`
	LinksCap    float64 `envconfig:"CAP_LINKS" default:"2.0"`
	HeadingsCap float64 `envconfig:"CAP_HEADINGS" default:"1.5"`
	I18nCap     float64 `envconfig:"CAP_MULTILINGUAL" default:"1.0"`
	FreshCap    float64 `envconfig:"CAP_FRESHNESS" default:"1.0"`
	EEATCap     float64 `envconfig:"CAP_EEAT" default:"1.0"`
}

// ReportS3Enabled meldet, ob CSV-Reports zusätzlich nach S3 hochgeladen werden.
func (c *Config) ReportS3Enabled() bool {
	return c.ReportS3Bucket != "" && c.ReportS3URL != "" && c.ReportS3Key != ""
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

// Default liefert die Konfiguration mit Standardwerten, ohne .env-Datei.
func Default() *Config {
	var c Config
	_ = envconfig.Process("", &c)
	return &c
}
