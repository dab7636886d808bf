package mappings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/prajwal-br31/bks-backend/internal/accounting/accounts"
	"github.com/prajwal-br31/bks-backend/internal/accounting/shared"
)

// Policy selects how roles are turned into accounts.
type Policy string

const (
	// PolicyMapped uses only explicit role mappings.
	PolicyMapped Policy = "mapped"
	// PolicyMappedThenSearch falls back to the substring search when a role is unmapped.
	PolicyMappedThenSearch Policy = "mapped_then_search"
	// PolicySearch ignores mappings and always searches the chart.
	PolicySearch Policy = "search"
)

// ParsePolicy validates a configured policy name. Empty means PolicyMappedThenSearch.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return PolicyMappedThenSearch, nil
	case PolicyMapped, PolicyMappedThenSearch, PolicySearch:
		return p, nil
	default:
		return "", fmt.Errorf("mappings: unknown resolution policy %q", s)
	}
}

// AccountFinder is the slice of the account registry the resolver reads.
type AccountFinder interface {
	Get(ctx context.Context, companyID, id uuid.UUID) (accounts.Account, error)
	FindActive(ctx context.Context, companyID uuid.UUID, filter accounts.SearchFilter) ([]accounts.Account, error)
}

// Resolver binds roles to concrete accounts for posting.
type Resolver struct {
	mappings Repository
	accounts AccountFinder
	policy   Policy
}

// NewResolver constructs a Resolver.
func NewResolver(mappings Repository, finder AccountFinder, policy Policy) *Resolver {
	if policy == "" {
		policy = PolicyMappedThenSearch
	}
	return &Resolver{mappings: mappings, accounts: finder, policy: policy}
}

// Resolve returns the single account serving role for the company, or an
// *shared.AccountResolutionError.
func (r *Resolver) Resolve(ctx context.Context, companyID uuid.UUID, role Role) (accounts.Account, error) {
	if _, ok := requirements[role]; !ok {
		return accounts.Account{}, shared.Invalid("role", "unknown role %q", role)
	}
	if r.policy != PolicySearch {
		a, err := r.fromMapping(ctx, companyID, role)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, ErrNoMapping) {
			return accounts.Account{}, err
		}
		if r.policy == PolicyMapped {
			return accounts.Account{}, &shared.AccountResolutionError{
				Role:   string(role),
				Reason: shared.ResolutionMissing,
				Detail: "no account mapped to role",
			}
		}
	}
	return r.search(ctx, companyID, role)
}

func (r *Resolver) fromMapping(ctx context.Context, companyID uuid.UUID, role Role) (accounts.Account, error) {
	m, err := r.mappings.Get(ctx, companyID, role)
	if err != nil {
		return accounts.Account{}, err
	}
	a, err := r.accounts.Get(ctx, companyID, m.AccountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return accounts.Account{}, &shared.AccountResolutionError{
				Role:   string(role),
				Reason: shared.ResolutionStale,
				Detail: "mapped account no longer exists",
			}
		}
		return accounts.Account{}, err
	}
	if !role.Requirement().Accepts(a) {
		return accounts.Account{}, &shared.AccountResolutionError{
			Role:       string(role),
			Reason:     shared.ResolutionStale,
			Detail:     "mapped account is inactive or has the wrong type",
			Candidates: []string{a.Code},
		}
	}
	return a, nil
}

// search filters by code AND name hints, retries without hints on no match,
// and refuses to guess between several candidates.
func (r *Resolver) search(ctx context.Context, companyID uuid.UUID, role Role) (accounts.Account, error) {
	req := role.Requirement()
	filter := accounts.SearchFilter{Type: req.Type, CashOnly: req.CashOnly, CodeHint: req.CodeHint, NameHint: req.NameHint}
	found, err := r.accounts.FindActive(ctx, companyID, filter)
	if err != nil {
		return accounts.Account{}, err
	}
	if len(found) == 0 && (filter.CodeHint != "" || filter.NameHint != "") {
		filter.CodeHint, filter.NameHint = "", ""
		found, err = r.accounts.FindActive(ctx, companyID, filter)
		if err != nil {
			return accounts.Account{}, err
		}
	}
	switch len(found) {
	case 0:
		return accounts.Account{}, &shared.AccountResolutionError{
			Role:   string(role),
			Reason: shared.ResolutionMissing,
			Detail: fmt.Sprintf("no active %s account", describe(req)),
		}
	case 1:
		return found[0], nil
	default:
		codes := make([]string, 0, len(found))
		for _, a := range found {
			codes = append(codes, a.Code)
		}
		return accounts.Account{}, &shared.AccountResolutionError{
			Role:       string(role),
			Reason:     shared.ResolutionAmbiguous,
			Detail:     "map the role explicitly",
			Candidates: codes,
		}
	}
}

func describe(req Requirement) string {
	if req.CashOnly {
		return "cash"
	}
	return string(req.Type)
}
