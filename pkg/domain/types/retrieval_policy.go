package types

import "fmt"

// RetrievalPolicy selects how similarity filtering is applied during
// memory retrieval. The policy is fixed per deployment, not per request.
type RetrievalPolicy string

const (
	// RetrievalPull fetches top-K candidates by distance and discards
	// results above a threshold locally. The extra candidates make the
	// kept/dropped decision observable in logs.
	RetrievalPull RetrievalPolicy = "pull-then-filter"

	// RetrievalInQuery pushes a hard distance cutoff into the store
	// query itself, saving the post-filter pass.
	RetrievalInQuery RetrievalPolicy = "filter-in-query"
)

// IsValid checks if the retrieval policy is valid
func (p RetrievalPolicy) IsValid() bool {
	switch p {
	case RetrievalPull, RetrievalInQuery:
		return true
	default:
		return false
	}
}

// String returns the string representation of the retrieval policy
func (p RetrievalPolicy) String() string {
	return string(p)
}

// ParseRetrievalPolicy parses a string into a RetrievalPolicy
func ParseRetrievalPolicy(s string) (RetrievalPolicy, error) {
	p := RetrievalPolicy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid retrieval policy: %s", s)
	}
	return p, nil
}

// PersistMode selects which writes block the user-visible response.
type PersistMode string

const (
	// PersistSyncCritical awaits the memory write before responding so
	// that an immediate follow-up question can retrieve it. The message
	// log write runs in the background.
	PersistSyncCritical PersistMode = "sync-critical"

	// PersistBackground schedules both writes after the response,
	// accepting a short read-after-write inconsistency window.
	PersistBackground PersistMode = "background"
)

// IsValid checks if the persist mode is valid
func (m PersistMode) IsValid() bool {
	switch m {
	case PersistSyncCritical, PersistBackground:
		return true
	default:
		return false
	}
}

// String returns the string representation of the persist mode
func (m PersistMode) String() string {
	return string(m)
}

// ParsePersistMode parses a string into a PersistMode
func ParsePersistMode(s string) (PersistMode, error) {
	m := PersistMode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid persist mode: %s", s)
	}
	return m, nil
}
