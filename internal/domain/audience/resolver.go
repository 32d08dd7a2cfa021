package audience

import (
	"context"
	"fmt"

	"pushdesk/internal/common"
)

// DirectorySource provides device directory and group fetches.
// Implementations live in infra/store/. Fetches are always re-issued fresh
// per resolution — never served from a UI-level cache — so a dispatch can
// never go out against a stale device list.
type DirectorySource interface {
	// FetchDirectory retrieves the full device directory.
	FetchDirectory(ctx context.Context) ([]User, error)

	// FetchGroups retrieves all user groups with their token sets.
	FetchGroups(ctx context.Context) ([]UserGroup, error)
}

// Resolver expands a symbolic target selector into a concrete, deduplicated
// list of delivery tokens.
type Resolver struct {
	directory DirectorySource
}

// NewResolver creates a new audience resolver.
func NewResolver(directory DirectorySource) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve expands sel into delivery tokens, preserving first-seen order.
// It returns EmptyAudienceError when the deduplicated set is empty and
// ResolutionFailedError when a fetch needed for resolution errors, so the
// caller can distinguish "no recipients" from "could not determine
// recipients".
func (r *Resolver) Resolve(ctx context.Context, sel Selector) ([]string, error) {
	var tokens []string

	switch sel.Kind {
	case SelectAllUsers:
		users, err := r.directory.FetchDirectory(ctx)
		if err != nil {
			return nil, common.NewResolutionFailedError(sel.String(), err)
		}
		for _, u := range users {
			tokens = append(tokens, u.Token)
		}

	case SelectGroup:
		group, err := r.findGroup(ctx, sel.GroupID)
		if err != nil {
			return nil, common.NewResolutionFailedError(sel.String(), err)
		}
		tokens = group.Tokens

	case SelectDevices:
		selected := make(map[string]bool, len(sel.DeviceIDs))
		for _, id := range sel.DeviceIDs {
			selected[id] = true
		}
		for _, u := range sel.Devices {
			if selected[u.Identity()] {
				tokens = append(tokens, u.Token)
			}
		}

	case SelectTokens:
		tokens = sel.Tokens

	default:
		return nil, common.NewResolutionFailedError(sel.String(), fmt.Errorf("unknown selector kind %q", sel.Kind))
	}

	resolved := dedupe(tokens)
	if len(resolved) == 0 {
		return nil, common.NewEmptyAudienceError(sel.String())
	}

	return resolved, nil
}

// findGroup fetches all groups and locates the one with the given id.
func (r *Resolver) findGroup(ctx context.Context, id string) (*UserGroup, error) {
	groups, err := r.directory.FetchGroups(ctx)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].ID == id {
			return &groups[i], nil
		}
	}
	return nil, fmt.Errorf("group %q not found", id)
}

// dedupe removes empty and duplicate tokens, preserving first-seen order.
func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
