package endpoints

import (
	"fmt"
	"net/url"
)

/* Endpoint is a webhook destination with its signing secret
 * Inactive endpoints are kept so lookups can report them as inactive
 */
type Endpoint struct {
	ID     string
	URL    string
	Active bool
	Secret string
}

// Validate checks if the endpoint configuration is valid
func (e *Endpoint) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if e.URL == "" {
		return fmt.Errorf("url cannot be empty for endpoint %s", e.ID)
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("invalid url for endpoint %s: %w", e.ID, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) url for endpoint %s (got %q)", e.ID, e.URL)
	}
	if e.Active && e.Secret == "" {
		return fmt.Errorf("secret cannot be empty for active endpoint %s", e.ID)
	}
	return nil
}
