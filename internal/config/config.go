package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"
)

// SMS providers accepted by SMS_PROVIDER.
const (
	SMSProviderTwilio = "twilio"
	SMSProviderSNS    = "sns"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins
	AdminEnabled   bool

	StoreDriver    string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	JWTPublicKeyPath string

	Phone         Phone
	Verification  Verification
	Delivery      Delivery
	SweepSchedule string // robfig/cron spec, "off" disables the sweeper
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users              string
	PhoneVerifications string
}

// Phone configures the normalizer. CountryCode wins over DefaultRegion when set.
type Phone struct {
	DefaultRegion string
	CountryCode   int
}

// Verification holds the code lifecycle policy.
type Verification struct {
	CodeTTL        time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	HashCost       int
}

// Delivery enumerates every channel credential. An empty string means the
// value is absent; the delivery router branches on that instead of failing.
type Delivery struct {
	WhatsAppAccessToken      string
	WhatsAppPhoneNumberID    string
	WhatsAppTemplateName     string
	WhatsAppTemplateLanguage string
	WhatsAppAPIBaseURL       string
	WhatsAppAPIVersion       string

	SMSProvider     string
	SMSAccountID    string
	SMSAuthToken    string
	SMSSenderNumber string
	SMSAPIBaseURL   string
	SNSRegion       string

	ChannelTimeout time.Duration
	AllowSimulated bool
}

// IsDevelopment reports whether APP_ENV names a non-production environment.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// Load reads all configuration from environment variables.
func Load() *Config {
	appEnv := getEnv("APP_ENV", "development")
	dev := isDevEnv(appEnv)
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         appEnv,
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		AdminEnabled:   getEnvBool("ADMIN_ENABLED", dev),

		StoreDriver:    getEnv("STORE_DRIVER", StoreMemory),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:              getEnv("DYNAMO_TABLE_USERS", "users"),
			PhoneVerifications: getEnv("DYNAMO_TABLE_PHONE_VERIFICATIONS", "phone_verifications"),
		},
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),

		Phone: Phone{
			DefaultRegion: getEnv("PHONE_DEFAULT_REGION", "EG"),
			CountryCode:   getEnvInt("PHONE_DEFAULT_COUNTRY_CODE", 0),
		},
		Verification: Verification{
			CodeTTL:        time.Duration(getEnvInt("CODE_TTL_SECONDS", 600)) * time.Second,
			MaxAttempts:    getEnvInt("CODE_MAX_ATTEMPTS", 5),
			ResendCooldown: getEnvDuration("RESEND_COOLDOWN", 30*time.Second),
			HashCost:       getEnvInt("OTP_HASH_COST", 10),
		},
		Delivery: Delivery{
			WhatsAppAccessToken:      getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			WhatsAppPhoneNumberID:    getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			WhatsAppTemplateName:     getEnv("WHATSAPP_TEMPLATE_NAME", ""),
			WhatsAppTemplateLanguage: getEnv("WHATSAPP_TEMPLATE_LANGUAGE", "en"),
			WhatsAppAPIBaseURL:       getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"),
			WhatsAppAPIVersion:       getEnv("WHATSAPP_API_VERSION", "v21.0"),

			SMSProvider:     getEnv("SMS_PROVIDER", SMSProviderTwilio),
			SMSAccountID:    getEnv("SMS_ACCOUNT_ID", ""),
			SMSAuthToken:    getEnv("SMS_AUTH_TOKEN", ""),
			SMSSenderNumber: getEnv("SMS_SENDER_NUMBER", ""),
			SMSAPIBaseURL:   getEnv("SMS_API_BASE_URL", "https://api.twilio.com"),
			SNSRegion:       getEnv("SNS_REGION", "us-east-1"),

			ChannelTimeout: getEnvDuration("DELIVERY_CHANNEL_TIMEOUT", 10*time.Second),
			AllowSimulated: getEnvBool("DELIVERY_ALLOW_SIMULATED", dev),
		},
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 5m"),
	}
}

func isDevEnv(env string) bool {
	return (&Config{AppEnv: env}).IsDevelopment()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
