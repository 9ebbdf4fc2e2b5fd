package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("addr", defaultAddr, "")
	fs.String("db-driver", defaultDBDriver, "")
	fs.String("db-dsn", defaultDBDSN, "")
	fs.Int("max-days", 0, "")
	fs.String("log-level", defaultLogLevel, "")
	return fs
}

// chdir changes the working directory for the duration of the test, like
// testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tripahead.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", v.GetString(cfgKeyAddr))
	assert.Equal(t, "sqlite", v.GetString(cfgKeyDBDriver))
	assert.Equal(t, "tripahead.db", v.GetString(cfgKeyDBDSN))
	assert.Equal(t, 0, v.GetInt(cfgKeyMaxDays))
	assert.Equal(t, "http://localhost:8080", v.GetString(cfgKeyAPIURL))
	assert.Equal(t, "info", v.GetString(cfgKeyLogLevel))
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
addr: ":9090"
database:
  driver: postgres
  dsn: postgres://localhost/trips
planner:
  max_days: 7
`)
	v, err := loadConfig(path, testFlags())
	require.NoError(t, err)
	assert.Equal(t, ":9090", v.GetString(cfgKeyAddr))
	assert.Equal(t, "postgres", v.GetString(cfgKeyDBDriver))
	assert.Equal(t, "postgres://localhost/trips", v.GetString(cfgKeyDBDSN))
	assert.Equal(t, 7, v.GetInt(cfgKeyMaxDays))
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, "addr: \":9090\"\nlog:\n  level: warn\n")
	t.Setenv("TRIPAHEAD_ADDR", ":7070")
	t.Setenv("TRIPAHEAD_DATABASE_DSN", "env.db")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--addr", ":6060"}))

	v, err := loadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, ":6060", v.GetString(cfgKeyAddr), "explicit flag wins")
	assert.Equal(t, "env.db", v.GetString(cfgKeyDBDSN), "env beats defaults")
	assert.Equal(t, "warn", v.GetString(cfgKeyLogLevel), "file beats flag defaults")
}

func TestLoadConfigNamedFileMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = newLogger("loud")
	assert.Error(t, err)
}
