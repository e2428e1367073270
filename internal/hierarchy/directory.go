package hierarchy

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrAgentNotFound    = errors.New("hierarchy: agent not found")
	ErrPermissionDenied = errors.New("hierarchy: permission denied")
)

// Directory abstracts the external agent-hierarchy source. Implementations
// must treat every call as a read-through lookup; the settlement engine never
// caches or mutates this structure.
type Directory interface {
	// FindAgent returns the agent record, or ErrAgentNotFound.
	FindAgent(ctx context.Context, software, username string) (Agent, error)

	// GetAccessibleAgents lists the agents below caller: direct children only,
	// or the whole subtree when includeAllDescendants is set.
	GetAccessibleAgents(ctx context.Context, software, caller string, includeAllDescendants bool) ([]Agent, error)

	// ParentChain returns ancestor usernames nearest first, excluding the
	// agent itself.
	ParentChain(ctx context.Context, software, username string) ([]string, error)
}

// ResolveTargetAgent decides which agent a request operates on. An empty
// requested name means the caller itself. A named target must exist and be a
// descendant of the caller: any depth with the view-all permission, direct
// child otherwise.
func ResolveTargetAgent(ctx context.Context, dir Directory, software, caller string, includeAll bool, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" || strings.EqualFold(requested, caller) {
		return caller, nil
	}

	candidate, err := dir.FindAgent(ctx, software, requested)
	if err != nil {
		return "", err
	}

	if includeAll {
		chain, err := dir.ParentChain(ctx, software, candidate.Username)
		if err != nil {
			return "", err
		}
		for _, ancestor := range chain {
			if strings.EqualFold(ancestor, caller) {
				return candidate.Username, nil
			}
		}
		return "", ErrPermissionDenied
	}

	if strings.EqualFold(candidate.Parent, caller) {
		return candidate.Username, nil
	}
	return "", ErrPermissionDenied
}
