package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve on minimal images
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string
	MySQLDSN   string
	ResetDB    bool

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret string

	NCPAccessKey    string
	NCPSecretKey    string
	StorageBucket   string
	StorageEndpoint string
	StorageRegion   string
	UploadMaxBytes  int64

	KMSKeyTag   string
	KMSEndpoint string
	KMSTimeout  time.Duration

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	Timezone          string
	ReminderInterval  time.Duration
	ReminderCatchUp   time.Duration
	ReminderMaxOffset time.Duration

	LogLevel    string
	LogFormat   string
	SwaggerHost string

	dbHost string
	dbUser string
	dbName string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	cfg := &Config{
		ServerPort: getEnv("PORT", getEnv("SERVER_PORT", "3000")),
		ResetDB:    getEnvBool("RESET_DB", false),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		RedisPass: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		NCPAccessKey:    os.Getenv("NCP_ACCESS_KEY"),
		NCPSecretKey:    os.Getenv("NCP_SECRET_KEY"),
		StorageBucket:   os.Getenv("NCP_BUCKET_NAME"),
		StorageEndpoint: strings.TrimRight(getEnv("STORAGE_ENDPOINT", "https://kr.object.ncloudstorage.com"), "/"),
		StorageRegion:   getEnv("STORAGE_REGION", "kr-standard"),
		UploadMaxBytes:  int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),

		KMSKeyTag:   os.Getenv("NCP_KMS_KEY_TAG"),
		KMSEndpoint: strings.TrimRight(getEnv("KMS_ENDPOINT", "https://kms.apigw.ntruss.com"), "/"),
		KMSTimeout:  getEnvDuration("KMS_TIMEOUT", 5*time.Second),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),

		Timezone:          getEnv("APP_TIMEZONE", "Asia/Seoul"),
		ReminderInterval:  getEnvDuration("REMINDER_INTERVAL", time.Minute),
		ReminderCatchUp:   getEnvDuration("REMINDER_CATCHUP", 0),
		ReminderMaxOffset: getEnvDuration("REMINDER_MAX_OFFSET", 24*time.Hour),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),

		dbHost: os.Getenv("DB_HOST"),
		dbUser: os.Getenv("DB_USER"),
		dbName: os.Getenv("DB_NAME"),
	}
	cfg.MailFrom = getEnv("MAIL_FROM", cfg.SMTPUser)

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	if cfg.MySQLDSN == "" && cfg.dbHost != "" {
		cfg.MySQLDSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.dbUser, os.Getenv("DB_PASSWORD"), cfg.dbHost, getEnv("DB_PORT", "3306"), cfg.dbName)
	}
	return cfg
}

// Validate reports every required setting that is missing. The server refuses to start on error.
func (c *Config) Validate() error {
	var missing []string
	if c.MySQLDSN == "" {
		if c.dbHost == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.dbUser == "" {
			missing = append(missing, "DB_USER")
		}
		if c.dbName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) == 0 {
			missing = append(missing, "MYSQL_DSN")
		}
	}
	required := []struct{ key, val string }{
		{"JWT_SECRET", c.JWTSecret},
		{"NCP_ACCESS_KEY", c.NCPAccessKey},
		{"NCP_SECRET_KEY", c.NCPSecretKey},
		{"NCP_BUCKET_NAME", c.StorageBucket},
		{"NCP_KMS_KEY_TAG", c.KMSKeyTag},
	}
	for _, r := range required {
		if r.val == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be positive")
	}
	return nil
}

// MailEnabled reports whether outbound mail credentials are present.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != ""
}

// Location resolves the application time zone used for due dates and reminders.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
