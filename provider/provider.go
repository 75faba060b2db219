// Package provider defines the adapter contract the scan orchestrator
// consumes. Concrete adapters live in subpackages, one per cloud
// vendor, and are registered through the factory registry.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/costhound/costhound/types"
)

// Adapter enumerates candidate resources for one cloud account. Every
// call is independently failable; the orchestrator decides what a
// failure means for the scan.
type Adapter interface {
	// Name identifies the cloud vendor, e.g. "aws"
	Name() string

	// ValidateCredentials fails with an AuthError when the account's
	// credentials are bad or expired.
	ValidateCredentials(ctx context.Context) error

	// ListRegions returns the finite, ordered set of region codes the
	// account can be scanned in.
	ListRegions(ctx context.Context) ([]string, error)

	// ScanRegion enumerates candidate resources in one region. A single
	// malformed item is skipped and logged, never raised; only systemic
	// failures (network, auth) return an error.
	ScanRegion(ctx context.Context, region string) ([]types.Candidate, error)
}

// Credentials is the decrypted credential material for one account.
// It lives only for the duration of a single scan invocation.
type Credentials struct {
	Provider        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string
	Regions         []string // explicit region list, empty = ask the adapter
}

// Factory creates an adapter bound to one account's credentials
type Factory func(ctx context.Context, creds Credentials) (Adapter, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a provider factory under a vendor name
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New creates an adapter instance by vendor name
func New(ctx context.Context, name string, creds Credentials) (Adapter, error) {
	mu.RLock()
	factory, exists := factories[name]
	mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("provider %s not registered", name)
	}
	return factory(ctx, creds)
}

// Names returns the registered vendor names
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
