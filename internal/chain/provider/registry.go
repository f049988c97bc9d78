package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"TreasurySweep/internal/chain"
	"TreasurySweep/internal/chain/ethereum"
)

// Registry manages a set of chain clients keyed by network name.
type Registry struct {
	defaultNetwork string
	clients        map[string]chain.Client
}

// NewRegistry instantiates a concrete client per configured network.
func NewRegistry(ctx context.Context, defs chain.NetworkDefinitions, defaultNetwork string) (*Registry, error) {
	clients := make(map[string]chain.Client)
	for name, def := range defs.Networks {
		client, err := ethereum.NewClient(ctx, ethereum.Config{
			Name:    name,
			RPCURL:  def.RPCURL,
			ChainID: def.ChainID,
			Notes:   def.Description,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise network %s: %w", name, err)
		}
		clients[name] = client
	}

	if len(clients) == 0 {
		return nil, errors.New("no network rpc endpoints configured")
	}

	defaultNetwork = strings.TrimSpace(defaultNetwork)
	if defaultNetwork == "" {
		names := make([]string, 0, len(clients))
		for name := range clients {
			names = append(names, name)
		}
		sort.Strings(names)
		defaultNetwork = names[0]
	}
	if _, ok := clients[defaultNetwork]; !ok {
		return nil, fmt.Errorf("default network %s is not defined", defaultNetwork)
	}

	return &Registry{defaultNetwork: defaultNetwork, clients: clients}, nil
}

// DefaultClient returns the client for the configured default network.
func (r *Registry) DefaultClient() (chain.Client, error) {
	if r == nil {
		return nil, errors.New("network registry is not initialised")
	}
	client, ok := r.clients[r.defaultNetwork]
	if !ok {
		return nil, fmt.Errorf("default network %s is not registered", r.defaultNetwork)
	}
	return client, nil
}

// DefaultNetwork returns the name of the default network.
func (r *Registry) DefaultNetwork() string {
	if r == nil {
		return ""
	}
	return r.defaultNetwork
}

// Client returns the chain client identified by network name.
func (r *Registry) Client(name string) (chain.Client, bool) {
	if r == nil {
		return nil, false
	}
	client, ok := r.clients[name]
	return client, ok
}

// Networks returns the sorted list of registered network names.
func (r *Registry) Networks() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}
