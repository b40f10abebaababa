package catalog

import (
	"context"
	"errors"
)

// ErrProviderNotFound is returned by a provider's GetByID when it has no
// record for the given external id.
var ErrProviderNotFound = errors.New("record not found on provider")

// SearchParams are the common search parameters across providers.
type SearchParams struct {
	Query    string
	Page     int
	PageSize int
	Genres   []string
	Year     int
	Season   string
	Status   Status
}

// Result is the envelope returned by provider listing calls.
type Result struct {
	Items   []Record
	Total   int
	HasMore bool
}

// EmptyResult returns a zero-value result. Listing calls degrade to this
// on transport or parse failures rather than surfacing an error.
func EmptyResult() Result {
	return Result{Items: []Record{}}
}

// Provider is the capability contract implemented by each external catalog
// metadata source. Listing calls never fail: a provider that is down
// contributes an empty result. Only GetByID distinguishes a missing record
// (ErrProviderNotFound).
type Provider interface {
	Name() string
	Search(ctx context.Context, params SearchParams) Result
	GetByID(ctx context.Context, externalID string) (*Record, error)
	Seasonal(ctx context.Context, year int, season string) Result
	Ongoing(ctx context.Context) Result
	Upcoming(ctx context.Context) Result
	Popular(ctx context.Context) Result
}
