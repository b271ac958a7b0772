package registry

import (
	"sort"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// ProviderSet is the view of the registry one pipeline run works with
type ProviderSet struct {
	Data  map[string]provider.DataProvider
	Audio map[string]provider.AudioProvider
	Image map[string]provider.ImageProvider
	Sync  map[string]provider.SyncProvider

	dataSpecs map[string]*DataSpec
}

func newProviderSet() *ProviderSet {
	return &ProviderSet{
		Data:      make(map[string]provider.DataProvider),
		Audio:     make(map[string]provider.AudioProvider),
		Image:     make(map[string]provider.ImageProvider),
		Sync:      make(map[string]provider.SyncProvider),
		dataSpecs: make(map[string]*DataSpec),
	}
}

// NewProviderSet creates an empty set, mostly for tests
func NewProviderSet() *ProviderSet {
	return newProviderSet()
}

// Empty reports whether the set holds no provider at all
func (s *ProviderSet) Empty() bool {
	return len(s.Data)+len(s.Audio)+len(s.Image)+len(s.Sync) == 0
}

// DataFor picks the data provider for a document: the restricted provider
// managing id, otherwise the first unrestricted provider by name
func (s *ProviderSet) DataFor(id string) (provider.DataProvider, string, bool) {
	names := sortedKeys(s.Data)
	for _, name := range names {
		if spec, ok := s.dataSpecs[name]; ok && spec.Restricted() && spec.Manages(id) {
			return s.Data[name], name, true
		}
	}
	for _, name := range names {
		if spec, ok := s.dataSpecs[name]; !ok || !spec.Restricted() {
			return s.Data[name], name, true
		}
	}
	return nil, "", false
}

// Writable reports whether the named data provider accepts writes
func (s *ProviderSet) Writable(name string) bool {
	spec, ok := s.dataSpecs[name]
	return !ok || !spec.ReadOnly
}

// FirstAudio returns the audio provider with the lowest name, or the
// named one when preferred is set
func (s *ProviderSet) FirstAudio(preferred string) (provider.AudioProvider, bool) {
	return pick(s.Audio, preferred)
}

// FirstImage is FirstAudio for image providers
func (s *ProviderSet) FirstImage(preferred string) (provider.ImageProvider, bool) {
	return pick(s.Image, preferred)
}

// FirstSync is FirstAudio for sync providers
func (s *ProviderSet) FirstSync(preferred string) (provider.SyncProvider, bool) {
	return pick(s.Sync, preferred)
}

func pick[P any](m map[string]P, preferred string) (P, bool) {
	if preferred != "" {
		p, ok := m[preferred]
		return p, ok
	}
	var zero P
	names := sortedKeys(m)
	if len(names) == 0 {
		return zero, false
	}
	return m[names[0]], true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
