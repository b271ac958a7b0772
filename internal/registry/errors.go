package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var (
	// ErrConfig is matched by every fatal provider configuration error
	ErrConfig = errors.New("invalid provider configuration")

	// ErrOutOfScope is matched when a data provider is asked for an
	// identifier outside its managed files
	ErrOutOfScope = errors.New("identifier outside provider scope")

	// ErrReadOnly is matched when a write reaches a read-only data provider
	ErrReadOnly = errors.New("data provider is read-only")
)

// ConfigError is a fatal problem in the providers section
type ConfigError struct {
	Path string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ConflictError reports a file claimed by two restricted data providers
type ConflictError struct {
	File   string
	First  string
	Second string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("data providers %q and %q both manage file %q; managed files must not overlap",
		e.First, e.Second, e.File)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConfig }

// ScopeError is returned for identifiers a restricted provider does not manage
type ScopeError struct {
	Provider string
	ID       string
	Managed  []string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("data provider %q does not manage %q (managed: %v)", e.Provider, e.ID, e.Managed)
}

func (e *ScopeError) Is(target error) bool { return target == ErrOutOfScope }

// PermissionError is returned for writes to a read-only provider
type PermissionError struct {
	Provider string
	Op       string
	ID       string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("data provider %q is read-only: %s %q not permitted", e.Provider, e.Op, e.ID)
}

func (e *PermissionError) Is(target error) bool { return target == ErrReadOnly }

// Suggest returns a "did you mean" hint for a mistyped name, or the
// known names when nothing is close
func Suggest(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return fmt.Sprintf(" (did you mean %q?)", ranks[0].Target)
	}

	best, bestDist := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return fmt.Sprintf(" (known: %v)", candidates)
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}
