// Package handlers wires the HTTP surface onto the retrieval and validation
// cores. Handlers depend on small interfaces so tests can substitute fakes.
package handlers

import (
	"context"

	"statutelink/pkg/retriever"
	"statutelink/pkg/validation"
)

// RetrieverService is the retrieval core as the search handler sees it.
type RetrieverService interface {
	Retrieve(ctx context.Context, query string, k int, opts retriever.Options) (*retriever.Response, error)
}

// ValidatorService is the validation core as the validate handler sees it.
type ValidatorService interface {
	Validate(ctx context.Context, answer, query string, retrieved []validation.ContextDoc) *validation.Result
}

// HealthChecker reports liveness of one dependency.
type HealthChecker interface {
	IsHealthy() bool
}

// Handlers is the container the server wires routes from.
type Handlers struct {
	Search *SearchHandler
	Validate *ValidateHandler
	Health *HealthHandler
}

// New builds the handler container.
func New(ret RetrieverService, val ValidatorService, deps map[string]HealthChecker) *Handlers {
	return &Handlers{
		Search:   &SearchHandler{retriever: ret},
		Validate: &ValidateHandler{pipeline: val},
		Health:   &HealthHandler{deps: deps},
	}
}
