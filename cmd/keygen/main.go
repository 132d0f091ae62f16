// Command keygen mints operator credentials for the session and tools
// endpoints.
//
//	keygen -token -operator ops@example.com -ttl 720h
//	keygen -apikey
//	keygen -hash "$EXISTING_KEY"
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"leadrelay/internal/platform/auth"
	"leadrelay/internal/platform/config"
)

func main() {
	token := flag.Bool("token", false, "Mint a signed access token (needs auth.jwt_secret)")
	operator := flag.String("operator", "", "Operator the token is issued to")
	scopes := flag.String("scopes", "", "Comma separated token scopes")
	ttl := flag.Duration("ttl", 0, "Token lifetime (defaults to auth.token_ttl)")
	apiKey := flag.Bool("apikey", false, "Generate a new API key and its bcrypt hash")
	hash := flag.String("hash", "", "Print the bcrypt hash of an existing API key")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")

	flag.Parse()
	_ = godotenv.Load()

	switch {
	case *token:
		if *operator == "" {
			fail("-operator is required with -token")
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			fail("Failed to load config: %v", err)
		}
		signed, err := auth.NewTokenService(cfg.Auth).GenerateAccessToken(*operator, *ttl, splitScopes(*scopes)...)
		if err != nil {
			fail("Failed to mint token: %v", err)
		}
		expires := *ttl
		if expires <= 0 {
			expires = cfg.Auth.TokenTTL
		}
		fmt.Println(signed)
		fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(expires).UTC().Format(time.RFC3339))

	case *apiKey:
		raw, hashed, err := auth.GenerateAPIKey()
		if err != nil {
			fail("Failed to generate key: %v", err)
		}
		fmt.Printf("key:  %s\nhash: %s\n", raw, hashed)
		fmt.Fprintln(os.Stderr, "Set AUTH_API_KEY_HASH to the hash; hand the key to the operator.")

	case *hash != "":
		hashed, err := auth.HashAPIKey(*hash)
		if err != nil {
			fail("Failed to hash key: %v", err)
		}
		fmt.Println(hashed)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func splitScopes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
