package btcforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btcforge.conf")
	content := `# comment
BTCFORGE_BUILD_DIR = /srv/builds
BTCFORGE_CORES="6"
BTCFORGE_S3_BUCKET='artifacts'
garbage line without equals

BTCFORGE_DEBUG=1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/builds", cfg.Values["BTCFORGE_BUILD_DIR"])
	assert.Equal(t, "6", cfg.Values["BTCFORGE_CORES"])
	assert.Equal(t, "artifacts", cfg.Values["BTCFORGE_S3_BUCKET"])
	assert.Equal(t, "1", cfg.Values["BTCFORGE_DEBUG"])
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Values)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btcforge.conf")
	require.NoError(t, os.WriteFile(path, []byte("BTCFORGE_CORES=2\n"), 0o644))

	t.Setenv("BTCFORGE_CORES", "8")
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "8", cfg.Values["BTCFORGE_CORES"])
}

func TestInitConfigAppliesValues(t *testing.T) {
	savedRoot, savedCores := buildRoot, buildCores
	savedCont, savedArch, savedDebug := continueOnError, archiveOutput, Debug
	t.Cleanup(func() {
		buildRoot, buildCores = savedRoot, savedCores
		continueOnError, archiveOutput, Debug = savedCont, savedArch, savedDebug
	})

	cfg := &Config{Values: map[string]string{
		"BTCFORGE_BUILD_DIR":         "/srv/builds",
		"BTCFORGE_CORES":             "4",
		"BTCFORGE_CONTINUE_ON_ERROR": "1",
		"BTCFORGE_ARCHIVE":           "1",
	}}
	initConfig(cfg)

	assert.Equal(t, "/srv/builds", buildRoot)
	assert.Equal(t, 4, buildCores)
	assert.True(t, continueOnError)
	assert.True(t, archiveOutput)
	assert.False(t, Debug)
}

func TestInitConfigDefaults(t *testing.T) {
	savedRoot, savedCores := buildRoot, buildCores
	t.Cleanup(func() { buildRoot, buildCores = savedRoot, savedCores })

	initConfig(&Config{Values: map[string]string{}})

	assert.Contains(t, buildRoot, filepath.Join("Downloads", "bitcoin_builds"))
	assert.GreaterOrEqual(t, buildCores, 1)
}

func TestInitConfigRejectsBadCoreCount(t *testing.T) {
	savedCores := buildCores
	t.Cleanup(func() { buildCores = savedCores })

	initConfig(&Config{Values: map[string]string{"BTCFORGE_CORES": "0"}})
	assert.GreaterOrEqual(t, buildCores, 1)

	initConfig(&Config{Values: map[string]string{"BTCFORGE_CORES": "lots"}})
	assert.GreaterOrEqual(t, buildCores, 1)
}

func TestDefaultConfigPathOverride(t *testing.T) {
	t.Setenv("BTCFORGE_CONFIG", "/tmp/custom.conf")
	assert.Equal(t, "/tmp/custom.conf", defaultConfigPath())
}
