package client

import (
	"fmt"
	"sync"

	"chain_provider/internal/app/port"
	"chain_provider/internal/domain/entity"
	"chain_provider/internal/infrastructure/network/rpc"
)

// Provider implements port.ChainClientProvider, creating one client per chain on first use.
type Provider struct {
	clients   map[string]port.ChainClient
	mu        sync.Mutex
	transport *rpc.Client
	logger    port.Logger
}

// NewProvider creates a Provider whose clients share transport.
func NewProvider(transport *rpc.Client, log port.Logger) *Provider {
	return &Provider{
		clients:   make(map[string]port.ChainClient),
		transport: transport,
		logger:    log,
	}
}

// GetClient returns the cached client for def, creating it according to the chain family.
func (p *Provider) GetClient(def entity.ChainDefinition) (port.ChainClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, exists := p.clients[def.Identifier]; exists {
		return c, nil
	}

	var c port.ChainClient
	switch def.Family {
	case entity.FamilyEVM, "":
		c = NewEVMClient(def, p.transport, p.logger)
	default:
		return nil, fmt.Errorf("chain %s: unsupported family %q", def.Identifier, def.Family)
	}

	p.clients[def.Identifier] = c
	p.logger.Debug("Created chain client", "chain", def.Identifier, "family", def.Family)
	return c, nil
}
