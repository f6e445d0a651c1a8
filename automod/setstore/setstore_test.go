package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSetStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemSetStore()

	out, err := s.InSet(ctx, SetTrustedUsers, "GrandSage")
	assert.NoError(err)
	assert.False(out)

	s.Add(SetTrustedUsers, "GrandSage", "modbot")

	out, err = s.InSet(ctx, SetTrustedUsers, "grandsage")
	assert.NoError(err)
	assert.True(out)

	// lookups are case-insensitive both ways
	out, err = s.InSet(ctx, SetTrustedUsers, "MODBOT")
	assert.NoError(err)
	assert.True(out)

	out, err = s.InSet(ctx, SetTrustedUsers, "someone-else")
	assert.NoError(err)
	assert.False(out)

	assert.ElementsMatch([]string{"grandsage", "modbot"}, s.Values(SetTrustedUsers))
	assert.Nil(s.Values("no-such-set"))
}

func TestMemSetStoreLoadJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "sets.json")
	blob := `{
		"trusted-users": ["GrandSage"],
		"keyword-explicit": ["Merde", "putain"]
	}`
	require.NoError(t, os.WriteFile(p, []byte(blob), 0644))

	s := NewMemSetStore()
	require.NoError(t, s.LoadFromFileJSON(p))

	out, err := s.InSet(ctx, SetTrustedUsers, "grandsage")
	assert.NoError(err)
	assert.True(out)

	assert.ElementsMatch([]string{"merde", "putain"}, s.Values(SetExplicitKeywords))

	assert.Error(s.LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json")))
}
