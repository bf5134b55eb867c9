package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// DataDir enthält einen Unterordner pro Rohdatensatz.
	DataDir   string `envconfig:"DATA_DIR" default:"data/public"`
	OutputDir string `envconfig:"OUTPUT_DIR" default:"data/harmonized"`
	// ClassifiedDir ist die Wurzel für Pfade, die über die Klassifikations-API übergeben werden.
	ClassifiedDir string `envconfig:"CLASSIFIED_DIR" default:"data/classified"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	RetrievalMaxWorkers     int    `envconfig:"RETRIEVAL_MAX_WORKERS" default:"8"`
	RetrievalSourcePriority string `envconfig:"RETRIEVAL_SOURCE_PRIORITY" default:"WIKIPEDIA"`
	EnabledRetrievers       string `envconfig:"ENABLED_RETRIEVERS" default:"wikipedia,pubmed"`

	WikipediaBaseURL string `envconfig:"WIKIPEDIA_BASE_URL" default:"https://en.wikipedia.org/api/rest_v1"`
	PubMedBaseURL    string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey     string `envconfig:"PUBMED_API_KEY"`
	EuropePMCBaseURL string `envconfig:"EUROPEPMC_BASE_URL" default:"https://www.ebi.ac.uk/europepmc/webservices/rest/search"`

	// Ohne S3Bucket werden Artefakte nur lokal geschrieben.
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// UploadEnabled meldet, ob Artefakte nach S3 hochgeladen werden.
func (c *Config) UploadEnabled() bool {
	return c.S3Bucket != ""
}

// Retrievers liefert die aktivierten Textquellen in Prioritätsreihenfolge, klein geschrieben.
func (c *Config) Retrievers() []string {
	var out []string
	for _, name := range strings.Split(c.EnabledRetrievers, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
