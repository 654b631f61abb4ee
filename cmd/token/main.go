package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"ride-dispatch/internal/cli"
)

func main() {
	var (
		userID = flag.String("user-id", "", "ID of the actor (token subject)")
		role   = flag.String("role", "passenger", "Actor role: passenger | driver | admin")
		secret = flag.String("secret", "", "JWT HMAC secret (HS256)")
		ttl    = flag.Duration("ttl", 2*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *userID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: token --user-id=<id> --role=driver --secret='<secret>' [--ttl=2h]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateUserToken(*secret, *userID, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:  %s\n", claims.Subject)
	fmt.Printf("  role: %s\n", claims.Role)
	fmt.Printf("  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
