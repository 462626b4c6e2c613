package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/config"
)

func main() {
	var (
		email  = flag.String("email", "", "email claim")
		name   = flag.String("name", "", "name claim")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
		count  = flag.Int("count", 1, "number of tokens to generate")
		prefix = flag.String("prefix", "test-user", "subject prefix when count > 1")
		output = flag.String("output", "", "file to write generated tokens as a JSON array")
	)
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	secret := config.String("LOCAL_AUTH_SHARED_SECRET", "")
	if secret == "" {
		log.Fatal("LOCAL_AUTH_SHARED_SECRET must be set")
	}
	if *count < 1 {
		log.Fatal("count must be at least 1")
	}
	args := flag.Args()
	if len(args) > 0 && *count > 1 {
		log.Fatal("explicit subject cannot be provided when generating multiple tokens")
	}

	tokens := make([]string, *count)
	for i := range tokens {
		sub := *prefix
		switch {
		case len(args) > 0:
			sub = args[0]
		case *count > 1:
			sub = fmt.Sprintf("%s-%d", *prefix, i+1)
		}
		tok, err := signToken([]byte(secret), tokenClaims{Subject: sub, Email: *email, Name: *name}, *ttl, time.Now())
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}
		tokens[i] = tok
	}

	if *output != "" {
		if err := writeTokens(*output, tokens); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
	}
	fmt.Print(tokens[0])
}

type tokenClaims struct {
	Subject string
	Email   string
	Name    string
}

// signToken issues an HS256 token accepted by the hs256 auth provider.
func signToken(secret []byte, c tokenClaims, ttl time.Duration, now time.Time) (string, error) {
	if c.Subject == "" {
		return "", errors.New("subject is required")
	}
	claims := jwt.MapClaims{
		"sub": c.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if c.Email != "" {
		claims["email"] = c.Email
	}
	if c.Name != "" {
		claims["name"] = c.Name
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
