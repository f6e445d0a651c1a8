// Named string sets used by the moderation pipeline (trusted users, keyword
// term lists), loadable from a JSON config file.
package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// Well-known set names.
const (
	SetTrustedUsers     = "trusted-users"
	SetExplicitKeywords = "keyword-explicit"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

type MemSetStore struct {
	Sets map[string]map[string]bool
}

var _ SetStore = (*MemSetStore)(nil)

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: returns false when the entire set isn't configured
		return false, nil
	}
	_, ok = set[strings.ToLower(val)]
	return ok, nil
}

func (s *MemSetStore) Add(name string, vals ...string) {
	m, ok := s.Sets[name]
	if !ok {
		m = make(map[string]bool, len(vals))
		s.Sets[name] = m
	}
	for _, val := range vals {
		m[strings.ToLower(val)] = true
	}
}

func (s *MemSetStore) Values(name string) []string {
	set, ok := s.Sets[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for val := range set {
		out = append(out, val)
	}
	return out
}

// LoadFromFileJSON merges sets from a JSON file shaped as
// {"set-name": ["val", ...], ...}. Values are lower-cased, since IRC nicks
// are case-insensitive.
func (s *MemSetStore) LoadFromFileJSON(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return err
	}

	for name, l := range sets {
		s.Add(name, l...)
	}
	return nil
}
