package llm

import (
	"context"
	"fmt"
	"sync"

	"charm.land/catwalk/pkg/catwalk"
)

// catalog memoizes the catwalk provider listing for the process.
// Fetch failures are not cached so a flaky network can recover.
type catalog struct {
	mu        sync.Mutex
	providers []catwalk.Provider
	loaded    bool
}

var modelCatalog catalog

func (c *catalog) get(ctx context.Context) ([]catwalk.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.providers, nil
	}
	providers, err := catwalk.New().GetProviders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch providers from catwalk: %w", err)
	}
	c.providers = providers
	c.loaded = true
	return providers, nil
}

// GetProviders returns the known providers, cached after first fetch.
func GetProviders(ctx context.Context) ([]catwalk.Provider, error) {
	return modelCatalog.get(ctx)
}

// FindModelProvider resolves the provider a model belongs to, falling
// back to name-pattern inference when the catalog is unavailable or
// does not list the model.
func FindModelProvider(ctx context.Context, modelID string) (string, error) {
	providers, err := GetProviders(ctx)
	if err == nil {
		for _, p := range providers {
			for _, m := range p.Models {
				if m.ID == modelID {
					return string(p.ID), nil
				}
			}
		}
	}
	if inferred := InferProviderFromModel(modelID); inferred != "" {
		return inferred, nil
	}
	if err != nil {
		return "", fmt.Errorf("model %q not found and cannot infer provider", modelID)
	}
	return "", fmt.Errorf("model %q not found in any provider", modelID)
}

// ModelInfo is one catalog entry flattened for listing.
type ModelInfo struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Provider      string  `json:"provider"`
	ContextWindow int64   `json:"context_window"`
	CostPer1MIn   float64 `json:"cost_per_1m_in"`
	CostPer1MOut  float64 `json:"cost_per_1m_out"`
	CanReason     bool    `json:"can_reason"`
}

// ListAllModels flattens every provider's models into one list.
func ListAllModels(ctx context.Context) ([]ModelInfo, error) {
	providers, err := GetProviders(ctx)
	if err != nil {
		return nil, err
	}
	var models []ModelInfo
	for _, p := range providers {
		for _, m := range p.Models {
			models = append(models, ModelInfo{
				ID:            m.ID,
				Name:          m.Name,
				Provider:      string(p.ID),
				ContextWindow: m.ContextWindow,
				CostPer1MIn:   m.CostPer1MIn,
				CostPer1MOut:  m.CostPer1MOut,
				CanReason:     m.CanReason,
			})
		}
	}
	return models, nil
}
