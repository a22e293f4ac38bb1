package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DB struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

type NSQ struct {
	NsqdTCPAddr    string // e.g. nsqd:4150
	LookupHTTPAddr string // e.g. http://nsqlookupd:4161
	TasksTopic     string // NSQ topic carrying delivery tasks
	WorkerChannel  string // NSQ channel name for workers
}

type Worker struct {
	MaxRetries     int           // Maximum delivery attempts per task
	RequestTimeout time.Duration // Outbound HTTP request timeout
	MaxInFlight    int           // NSQ max in-flight messages
	HTTPPort       string        // Worker HTTP metrics port
}

type Cache struct {
	TTL      time.Duration // Subscription cache validity window
	Capacity int           // Max cached subscriptions
}

type Auth struct {
	PublicKeyPEM string // RSA public key; empty disables management API auth
	Issuer       string
	Audience     string
}

type Janitor struct {
	MaxAge   time.Duration // Delete attempt records older than this
	Interval time.Duration // How often the purge runs
}

type Config struct {
	AppName  string
	HTTPPort string // :8080
	DB       DB
	NSQ      NSQ
	Worker   Worker
	Cache    Cache
	Auth     Auth
	Janitor  Janitor
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func FromEnv() Config {
	return Config{
		AppName:  getenv("APP_NAME", "wharfhook"),
		HTTPPort: getenv("HTTP_PORT", ":8080"),
		DB: DB{
			User: getenv("DB_USER", "postgres"),
			Pass: getenv("DB_PASS", "postgres"),
			Host: getenv("DB_HOST", "postgres"),
			Port: getenv("DB_PORT", "5432"),
			Name: getenv("DB_NAME", "wharfhook"),
		},
		NSQ: NSQ{
			NsqdTCPAddr:    getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			LookupHTTPAddr: getenv("NSQ_LOOKUP_HTTP_ADDR", "http://nsqlookupd:4161"),
			TasksTopic:     getenv("NSQ_TASKS_TOPIC", "delivery_tasks"),
			WorkerChannel:  getenv("NSQ_WORKER_CHANNEL", "workers"),
		},
		Worker: Worker{
			MaxRetries:     getenvInt("MAX_RETRIES", 5),
			RequestTimeout: getenvDuration("REQUEST_TIMEOUT", 5*time.Second),
			MaxInFlight:    getenvInt("NSQ_MAX_IN_FLIGHT", 250),
			HTTPPort:       ":" + getenv("WORKER_HTTP_PORT", "8082"),
		},
		Cache: Cache{
			TTL:      getenvDuration("CACHE_TTL", time.Hour),
			Capacity: getenvInt("CACHE_CAPACITY", 10000),
		},
		Auth: Auth{
			PublicKeyPEM: getenv("AUTH_PUBLIC_KEY", ""),
			Issuer:       getenv("AUTH_ISSUER", "wharfhook"),
			Audience:     getenv("AUTH_AUDIENCE", "wharfhook-api"),
		},
		Janitor: Janitor{
			MaxAge:   getenvDuration("RETENTION_MAX_AGE", 72*time.Hour),
			Interval: getenvDuration("RETENTION_INTERVAL", time.Hour),
		},
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB.User, c.DB.Pass, c.DB.Host, c.DB.Port, c.DB.Name)
}
