package endpoints

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/marcelsud/plop-reliability/webhook"
	"gopkg.in/yaml.v3"
)

/* Catalog is a webhook.EndpointSource backed by an endpoints.yaml file
 * Provides in-memory lookup for local and development setups
 */

// Config represents the structure of endpoints.yaml
type Config struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig represents a single endpoint in the YAML file
type EndpointConfig struct {
	ID     string `yaml:"id"`
	URL    string `yaml:"url"`
	Active *bool  `yaml:"active"` // Default: true
	Secret string `yaml:"secret"`
}

// Catalog holds the loaded endpoints
type Catalog struct {
	endpoints map[string]*Endpoint
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		endpoints: make(map[string]*Endpoint),
	}
}

// LoadFile creates a catalog from filePath
func LoadFile(filePath string) (*Catalog, error) {
	c := NewCatalog()
	if err := c.Load(filePath); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the endpoints file
func (c *Catalog) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading endpoints file: %w", err)
	}
	return c.Parse(data)
}

// Parse loads endpoints from YAML content, replacing what was loaded before
func (c *Catalog) Parse(data []byte) error {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing endpoints YAML: %w", err)
	}

	loaded := make(map[string]*Endpoint, len(config.Endpoints))
	for _, ec := range config.Endpoints {
		active := true
		if ec.Active != nil {
			active = *ec.Active
		}

		endpoint := &Endpoint{
			ID:     ec.ID,
			URL:    ec.URL,
			Active: active,
			Secret: ec.Secret,
		}

		if err := endpoint.Validate(); err != nil {
			return fmt.Errorf("validating endpoint: %w", err)
		}
		if _, dup := loaded[endpoint.ID]; dup {
			return fmt.Errorf("duplicate endpoint id: %s", endpoint.ID)
		}

		loaded[endpoint.ID] = endpoint
	}

	c.endpoints = loaded
	return nil
}

// Get retrieves an endpoint by its ID
func (c *Catalog) Get(id string) (*Endpoint, error) {
	endpoint, exists := c.endpoints[id]
	if !exists {
		return nil, fmt.Errorf("endpoint %s: %w", id, webhook.ErrNotFound)
	}
	return endpoint, nil
}

// List returns all loaded endpoints ordered by ID
func (c *Catalog) List() []*Endpoint {
	list := make([]*Endpoint, 0, len(c.endpoints))
	for _, endpoint := range c.endpoints {
		list = append(list, endpoint)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// GetEndpointSummary implements webhook.EndpointReader
func (c *Catalog) GetEndpointSummary(_ context.Context, id string) (webhook.EndpointSummary, error) {
	endpoint, err := c.Get(id)
	if err != nil {
		return webhook.EndpointSummary{}, err
	}
	return webhook.EndpointSummary{URL: endpoint.URL, Active: endpoint.Active}, nil
}

// GetSecret implements webhook.SecretReader
func (c *Catalog) GetSecret(_ context.Context, endpointID string) (string, error) {
	endpoint, err := c.Get(endpointID)
	if err != nil {
		return "", err
	}
	if endpoint.Secret == "" {
		return "", fmt.Errorf("secret for endpoint %s: %w", endpointID, webhook.ErrNotFound)
	}
	return endpoint.Secret, nil
}

var _ webhook.EndpointSource = (*Catalog)(nil)
