// Package bootstrap assembles the shared clients every function main needs
// from typed config sections.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/config"
	"github.com/peakee-labs/blinders/storage"
	"github.com/peakee-labs/blinders/transport"
)

// Transport builds the invocation binding selected by cfg.Driver.
func Transport(ctx context.Context, cfg config.Transport, st config.Storage) (transport.Transport, error) {
	switch cfg.Driver {
	case "lambda":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		return transport.NewLambdaTransport(lambda.NewFromConfig(awsCfg)), nil
	default:
		var queues transport.QueueSender
		if st.ConnectionString != "" {
			q, err := transport.NewAzureQueues(st.ConnectionString)
			if err != nil {
				return nil, fmt.Errorf("queues: %w", err)
			}
			queues = q
		}
		var opts []transport.FunctionOption
		if cfg.FunctionKey != "" {
			opts = append(opts, transport.WithFunctionKey(cfg.FunctionKey))
		}
		opts = append(opts, transport.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
		return transport.NewFunctionTransport(cfg.BaseURL, queues, opts...), nil
	}
}

// TokenVerifier builds the identity provider named by cfg.Provider.
func TokenVerifier(ctx context.Context, cfg config.Auth) (auth.TokenVerifier, error) {
	switch cfg.Provider {
	case "hs256":
		return auth.NewJWTVerifier(nil, auth.JWTConfig{
			Audience:   cfg.Audience,
			Issuer:     cfg.Issuer,
			TestSecret: []byte(cfg.TestSecret),
		}), nil
	case "jwks":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Ctx:             ctx,
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				log.Warnf("jwks refresh: %v", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("jwks: %w", err)
		}
		return auth.NewJWTVerifier(jwks, auth.JWTConfig{
			Audience:    cfg.Audience,
			Issuer:      cfg.Issuer,
			KeyCacheTTL: cfg.KeyCacheTTL,
		}), nil
	case "oidc":
		return auth.NewOIDCVerifier(ctx, cfg.Issuer, cfg.ClientID)
	case "firebase":
		return auth.NewFirebaseVerifier(ctx, cfg.ProjectID)
	}
	return nil, fmt.Errorf("unsupported auth provider %q", cfg.Provider)
}

// Directory builds the user directory named by cfg.Directory, fronted by a
// Redis cache when one is configured. The returned func releases the clients.
func Directory(ctx context.Context, cfg config.Auth, st config.Storage) (auth.Directory, func(), error) {
	var (
		dir     auth.Directory
		closers []func()
	)
	switch cfg.Directory {
	case "mongo":
		if st.MongoURI == "" {
			return nil, nil, fmt.Errorf("missing config: MONGO_URI")
		}
		client, err := storage.ConnectMongo(ctx, st.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
		dir = storage.NewMongoDirectory(client.Database(st.MongoDatabase).Collection("users"))
	case "table":
		if st.ConnectionString == "" {
			return nil, nil, fmt.Errorf("missing config: STORAGE_CONNECTION_STRING")
		}
		s, err := storage.New(st.ConnectionString, st.UsersTable, st.ExplainLogsTable)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		dir = s
	default:
		return nil, nil, fmt.Errorf("unsupported USER_DIRECTORY %q", cfg.Directory)
	}

	if opts := st.Redis(); opts != nil {
		rc := redis.NewClient(opts)
		closers = append(closers, func() { _ = rc.Close() })
		dir = storage.NewDirectoryCache(dir, rc, cfg.CacheTTL)
	}

	return dir, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// Authenticator builds the local or delegated authenticator selected by
// cfg.Mode.
func Authenticator(ctx context.Context, cfg config.Auth, st config.Storage, t transport.Transport, targets transport.Targets, logger *log.Logger) (auth.Authenticator, func(), error) {
	if cfg.Mode == "remote" {
		return auth.NewRemoteAuthenticator(t, targets.Resolve(transport.RoleAuthenticate), logger), func() {}, nil
	}

	policy, err := auth.ParseMissPolicy(cfg.MissingUser)
	if err != nil {
		return nil, nil, err
	}
	provider, err := TokenVerifier(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	dir, closeDir, err := Directory(ctx, cfg, st)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewLocalAuthenticator(auth.NewVerifier(provider, logger), dir, policy, logger), closeDir, nil
}

// Gate wraps the configured authenticator with the request boundary.
func Gate(a auth.Authenticator, cfg config.Auth, logger *log.Logger) *auth.Gate {
	return auth.NewGate(a, auth.WithBearerPrefix(cfg.RequirePrefix), auth.WithLogger(logger))
}
