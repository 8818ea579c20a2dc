package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/plop-reliability/endpoints"
)

/* validate-endpoints - Standalone CLI tool to validate endpoints.yaml
 * Usage: go run cmd/validate-endpoints/main.go [endpoints.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	endpointsFile := "endpoints.yaml"
	if len(os.Args) > 1 {
		endpointsFile = os.Args[1]
	}

	fmt.Printf("Validating endpoints file: %s\n", endpointsFile)
	fmt.Println(strings.Repeat("-", 50))

	catalog, err := endpoints.LoadFile(endpointsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loaded := catalog.List()
	fmt.Printf("VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d endpoint(s):\n", len(loaded))

	for i, endpoint := range loaded {
		fmt.Printf("\n%d. Endpoint: %s\n", i+1, endpoint.ID)
		fmt.Printf("   URL:     %s\n", endpoint.URL)
		fmt.Printf("   Active:  %t\n", endpoint.Active)
		fmt.Printf("   Secret:  %s\n", mask(endpoint.Secret))
	}

	fmt.Printf("\nAll endpoints are valid!\n")
}

// mask hides all but the last four characters of a secret
func mask(secret string) string {
	if secret == "" {
		return "(none)"
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
