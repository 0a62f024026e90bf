// Command devtoken prints a bearer token for a user id, signed with
// JWT_SECRET.  It is meant for local testing against the API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spacebook/reservation-core/internal/config"
	"github.com/spacebook/reservation-core/internal/utils"
)

func main() {
	_ = godotenv.Load()

	userID := flag.Uint64("user", 0, "user id placed in the sub claim")
	ttl := flag.Duration("ttl", config.AccessTokenTTL(), "token lifetime")
	asJSON := flag.Bool("json", false, "print token and expiry as JSON")
	flag.Parse()

	if *userID == 0 {
		fmt.Fprintln(os.Stderr, "devtoken: -user is required")
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *userID, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	if *asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(tok)
		return
	}
	fmt.Println(tok.Token)
}
