package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_PATH", "")
	t.Setenv("APP_VERSION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "encounters.db", cfg.DBPath)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "1.14.2", cfg.AppVersion)
	assert.Equal(t, 60*time.Second, cfg.CastIdleTTL)
}

func TestLoadVersion(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name    string
		version string
		want    string
		wantErr bool
	}{
		{name: "plain", version: "1.15.0", want: "1.15.0"},
		{name: "v prefix", version: "v1.13.5", want: "1.13.5"},
		{name: "build metadata", version: "1.13.5+2", want: "1.13.5+2"},
		{name: "garbage", version: "latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_VERSION", tt.version)
			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.AppVersion)
		})
	}
}
