package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	AppMode     string
	LogMode     string
	JWTSecret   string
	// CORSOrigins is a comma separated allow list for the UI bridge.
	CORSOrigins []string

	// Local identity of the client this engine runs for.
	UserID      string
	AccessToken string

	APIBaseURL string
	APITimeout time.Duration

	// TransportKind is "websocket" or "redis".
	TransportKind     string
	TransportURL      string
	OutboundQueueSize int
	ReconnectMin      time.Duration
	ReconnectMax      time.Duration

	// SendVia is "http" (POST send) or "transport" (request/ack over the channel).
	SendVia          string
	SendTimeout      time.Duration
	SendRetryBackoff time.Duration

	TypingTimeout      time.Duration
	PageSize           int
	MaxAttachmentBytes int64

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:     getEnv("APP_PORT", "8090"),
		AppMode:     getEnv("APP_MODE", "debug"),
		LogMode:     getEnv("LOG_MODE", "development"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),

		UserID:      getEnv("CHAT_USER_ID", ""),
		AccessToken: getEnv("CHAT_ACCESS_TOKEN", ""),

		APIBaseURL: getEnv("CHAT_API_BASE_URL", "http://localhost:3000/api"),
		APITimeout: getEnvAsDuration("CHAT_API_TIMEOUT", 10*time.Second),

		TransportKind:     getEnv("CHAT_TRANSPORT", "websocket"),
		TransportURL:      getEnv("CHAT_TRANSPORT_URL", "ws://localhost:3000/ws"),
		OutboundQueueSize: getEnvAsInt("CHAT_OUTBOUND_QUEUE_SIZE", 256),
		ReconnectMin:      getEnvAsDuration("CHAT_RECONNECT_MIN", time.Second),
		ReconnectMax:      getEnvAsDuration("CHAT_RECONNECT_MAX", 30*time.Second),

		SendVia:          getEnv("CHAT_SEND_VIA", "http"),
		SendTimeout:      getEnvAsDuration("CHAT_SEND_TIMEOUT", 10*time.Second),
		SendRetryBackoff: getEnvAsDuration("CHAT_SEND_RETRY_BACKOFF", 500*time.Millisecond),

		TypingTimeout:      getEnvAsDuration("CHAT_TYPING_TIMEOUT", 3*time.Second),
		PageSize:           getEnvAsInt("CHAT_PAGE_SIZE", 30),
		MaxAttachmentBytes: int64(getEnvAsInt("CHAT_MAX_ATTACHMENT_BYTES", 25<<20)),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("3s", "500ms").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
