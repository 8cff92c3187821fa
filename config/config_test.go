package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "algfetch.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, "algfetch", s.Namespace)
	assert.Len(t, s.Providers, 1)
	assert.Equal(t, time.Hour, s.Resolution.TTL.Duration)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
namespace = "svc"
default_properties = "fips=no"
serialize = true

[[providers]]
name = "default"

[[providers]]
name = "fips"
properties = "provider=fips,fips=yes"

[log]
format = "zap"
level = "debug"

[resolution]
store = "bigcache"
codec = "msgpack"
ttl = "90s"
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "svc", s.Namespace)
	assert.True(t, s.Serialize)
	assert.True(t, s.Legacy, "untouched keys keep defaults")
	require.Len(t, s.Providers, 2)
	assert.Equal(t, "provider=fips,fips=yes", s.Providers[1].Properties)
	assert.Equal(t, "zap", s.Log.Format)
	assert.Equal(t, 10, s.Log.MaxSizeMB)
	assert.Equal(t, "bigcache", s.Resolution.Store)
	assert.Equal(t, "local", s.Resolution.GenStore)
	assert.Equal(t, 90*time.Second, s.Resolution.TTL.Duration)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown store", "[resolution]\nstore = \"memcached\"\n"},
		{"unknown codec", "[resolution]\ncodec = \"xml\"\n"},
		{"bad level", "[log]\nlevel = \"trace\"\n"},
		{"empty namespace", "namespace = \"\"\n"},
		{"provider without name", "[[providers]]\nproperties = \"x=1\"\n"},
		{"bad redis address", "[resolution.redis]\naddr = \"nohost\"\n"},
		{"duplicate provider", "[[providers]]\nname = \"a\"\n[[providers]]\nname = \"a\"\n"},
		{"unknown key", "nmespace = \"typo\"\n"},
		{"bad duration", "[resolution]\nttl = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestRedisNeedsAddress(t *testing.T) {
	s := Default()
	s.Resolution.GenStore = "redis"
	s.Resolution.Redis.Addr = ""
	assert.Error(t, s.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
