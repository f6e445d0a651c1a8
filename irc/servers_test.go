package irc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeServersFile(t *testing.T, blob string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "servers.json")
	require.NoError(t, os.WriteFile(p, []byte(blob), 0644))
	return p
}

func TestLoadServersJSON(t *testing.T) {
	assert := assert.New(t)

	p := writeServersFile(t, `{
		"servers": [
			{"hostname": "irc.example.net", "port": 6697, "tls": true},
			{"hostname": "irc2.example.net", "port": 6667}
		],
		"preferred_server_index": 1
	}`)

	servers, preferred, err := LoadServersJSON(p)
	require.NoError(t, err)
	assert.Equal(1, preferred)
	require.Len(t, servers, 2)
	assert.Equal("irc.example.net:6697", servers[0].Addr())
	assert.Equal("ircs://irc.example.net:6697", servers[0].String())
	assert.Equal("irc://irc2.example.net:6667", servers[1].String())
}

func TestLoadServersJSONInvalid(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		name string
		blob string
	}{
		{name: "empty list", blob: `{"servers": []}`},
		{name: "missing hostname", blob: `{"servers": [{"port": 6667}]}`},
		{name: "bad port", blob: `{"servers": [{"hostname": "x", "port": 0}]}`},
		{name: "preferred out of range", blob: `{"servers": [{"hostname": "x", "port": 6667}], "preferred_server_index": 3}`},
		{name: "not json", blob: `servers!`},
	}

	for _, fix := range fixtures {
		_, _, err := LoadServersJSON(writeServersFile(t, fix.blob))
		assert.Error(err, fix.name)
	}

	_, _, err := LoadServersJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(err)
}
