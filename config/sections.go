package config

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Auth selects how the gate verifies tokens and resolves users.
type Auth struct {
	// Mode is "local" (verify in-process) or "remote" (delegate to the
	// AUTHENTICATE function).
	Mode          string
	Provider      string // jwks, firebase, oidc or hs256
	JWKSURL       string
	Audience      string
	Issuer        string
	ClientID      string
	ProjectID     string
	TestSecret    string
	KeyCacheTTL   time.Duration
	MissingUser   string
	RequirePrefix bool
	Directory     string // table or mongo
	CacheTTL      time.Duration
}

func LoadAuth() (Auth, error) {
	a := Auth{
		Mode:          strings.ToLower(String("AUTH_MODE", "local")),
		Provider:      strings.ToLower(String("AUTH_PROVIDER", "firebase")),
		JWKSURL:       String("AUTH_JWKS_URL", ""),
		Audience:      String("AUTH_AUDIENCE", ""),
		Issuer:        String("AUTH_ISSUER", ""),
		ClientID:      String("AUTH_CLIENT_ID", ""),
		ProjectID:     String("FIREBASE_PROJECT_ID", ""),
		TestSecret:    String("LOCAL_AUTH_SHARED_SECRET", ""),
		MissingUser:   String("AUTH_MISSING_USER", "allow"),
		RequirePrefix: String("AUTH_BEARER_PREFIX", "required") != "optional",
		Directory:     strings.ToLower(String("USER_DIRECTORY", "table")),
	}
	var err error
	if a.KeyCacheTTL, err = Duration("JWKS_CACHE_TTL", 15*time.Minute); err != nil {
		return Auth{}, err
	}
	if a.CacheTTL, err = Duration("USER_CACHE_TTL", 5*time.Minute); err != nil {
		return Auth{}, err
	}

	switch a.Mode {
	case "local", "remote":
	default:
		return Auth{}, fmt.Errorf("unsupported AUTH_MODE %q", a.Mode)
	}
	if a.Mode == "remote" {
		return a, nil
	}
	switch a.Provider {
	case "hs256":
		if a.TestSecret == "" {
			return Auth{}, fmt.Errorf("LOCAL_AUTH_SHARED_SECRET must be set when AUTH_PROVIDER=hs256")
		}
	case "jwks":
		if a.JWKSURL == "" {
			return Auth{}, fmt.Errorf("AUTH_JWKS_URL must be set when AUTH_PROVIDER=jwks")
		}
	case "firebase":
		if a.ProjectID == "" {
			return Auth{}, fmt.Errorf("FIREBASE_PROJECT_ID must be set when AUTH_PROVIDER=firebase")
		}
	case "oidc":
		if a.Issuer == "" || a.ClientID == "" {
			return Auth{}, fmt.Errorf("AUTH_ISSUER and AUTH_CLIENT_ID must be set when AUTH_PROVIDER=oidc")
		}
	default:
		return Auth{}, fmt.Errorf("unsupported AUTH_PROVIDER %q", a.Provider)
	}
	return a, nil
}

// Transport selects the invocation binding.
type Transport struct {
	Driver      string // function or lambda
	BaseURL     string
	FunctionKey string
	AWSRegion   string
}

func LoadTransport() (Transport, error) {
	t := Transport{
		Driver:      strings.ToLower(String("TRANSPORT_DRIVER", "function")),
		BaseURL:     String("FUNCTIONS_BASE_URL", "http://localhost:7071"),
		FunctionKey: String("FUNCTIONS_KEY", ""),
		AWSRegion:   String("AWS_REGION", ""),
	}
	switch t.Driver {
	case "function", "lambda":
		return t, nil
	default:
		return Transport{}, fmt.Errorf("unsupported TRANSPORT_DRIVER %q", t.Driver)
	}
}

// Storage locates tables, queues and the optional Redis and Mongo backends.
type Storage struct {
	ConnectionString string
	UsersTable       string
	ExplainLogsTable string
	CollectQueue     string
	RedisURL         string
	MongoURI         string
	MongoDatabase    string
	DedupeTTL        time.Duration
}

func LoadStorage() (Storage, error) {
	s := Storage{
		ConnectionString: String("STORAGE_CONNECTION_STRING", ""),
		UsersTable:       String("USERS_TABLE", "users"),
		ExplainLogsTable: String("EXPLAIN_LOGS_TABLE", "explainlogs"),
		CollectQueue:     String("COLLECT_QUEUE", "collect"),
		RedisURL:         String("REDIS_CONNECTION_STRING", ""),
		MongoURI:         String("MONGO_URI", ""),
		MongoDatabase:    String("MONGO_DATABASE", "blinders"),
	}
	var err error
	if s.DedupeTTL, err = Duration("DEDUPER_TTL", 24*time.Hour); err != nil {
		return Storage{}, err
	}
	return s, nil
}

// Redis parses RedisURL either as a redis:// URL or as an Azure style
// "host:port,password=...,ssl=True" connection string. It returns nil when no
// Redis is configured.
func (s Storage) Redis() *redis.Options {
	if s.RedisURL == "" {
		return nil
	}
	return ParseRedis(s.RedisURL)
}

func ParseRedis(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}

// LLM configures the chat and embedding models.
type LLM struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
}

func LoadLLM() (LLM, error) {
	l := LLM{
		APIKey:         String("OPENAI_API_KEY", ""),
		BaseURL:        String("OPENAI_BASE_URL", ""),
		ChatModel:      String("OPENAI_CHAT_MODEL", ""),
		EmbeddingModel: String("OPENAI_EMBEDDING_MODEL", ""),
	}
	if l.APIKey == "" {
		return LLM{}, fmt.Errorf("missing config: OPENAI_API_KEY")
	}
	return l, nil
}

// Vector locates the Qdrant collection for match profiles.
type Vector struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

func LoadVector() (Vector, error) {
	v := Vector{
		Host:       String("QDRANT_HOST", "localhost"),
		APIKey:     String("QDRANT_API_KEY", ""),
		UseTLS:     Bool("QDRANT_TLS"),
		Collection: String("QDRANT_COLLECTION", "match"),
	}
	var err error
	if v.Port, err = Int("QDRANT_PORT", 6334); err != nil {
		return Vector{}, err
	}
	if v.Dimension, err = Int("EMBEDDING_DIMENSION", 1536); err != nil {
		return Vector{}, err
	}
	return v, nil
}
