// mktoken mints a development session token. The signing secret comes
// from CLUB_AUTH_SECRET, same as the API server.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sbnctech/murmurant-sub011/internal/auth"
)

func main() {
	log.SetFlags(0)
	var (
		member       = flag.String("member", "", "member ID (required)")
		role         = flag.String("role", string(auth.RoleMember), "role name")
		impersonator = flag.String("impersonated-by", "", "original actor when impersonating")
		ttl          = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	if *member == "" {
		log.Fatal("usage: mktoken -member <id> [-role <role>] [-impersonated-by <id>] [-ttl <dur>]")
	}

	token, err := auth.GenerateToken(*member, auth.Role(*role), *impersonator, *ttl)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
}
