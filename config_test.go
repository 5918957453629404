package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "x62fanctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func Test_loadConfig_defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, 1, cfg.CheckInterval)
	require.Equal(t, defaultLevels, cfg.Levels)
	require.Empty(t, cfg.StatusBind)
}

func Test_loadConfig_file(t *testing.T) {
	path := writeConfig(t, `
check_interval: 5
status_bind: "127.0.0.1:9662"
levels:
  - { enter: 50, leave: 0, fan_speed: 100 }
  - { enter: 70, leave: 45, fan_speed: 1 }
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.CheckInterval)
	require.Equal(t, "127.0.0.1:9662", cfg.StatusBind)
	require.Equal(t, LevelTable{
		{Enter: 50, Leave: 0, FanSpeed: 100},
		{Enter: 70, Leave: 45, FanSpeed: 1},
	}, cfg.Levels)
}

func Test_loadConfig_keepsDefaultTableWhenUnset(t *testing.T) {
	path := writeConfig(t, "check_interval: 3\n")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.CheckInterval)
	require.Equal(t, defaultLevels, cfg.Levels)
}

func Test_loadConfig_rejectsBadTable(t *testing.T) {
	path := writeConfig(t, `
levels:
  - { enter: 10, leave: 20, fan_speed: 100 }
`)

	_, err := loadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "level table")
}

func Test_loadConfig_rejectsBadInterval(t *testing.T) {
	path := writeConfig(t, "check_interval: 0\n")

	_, err := loadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "check_interval")
}

func Test_loadConfig_missingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
