package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/bibe/internal/errs"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "bibe")
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func ptr[T any](v T) *T { return &v }

func TestDefaults(t *testing.T) {
	isolate(t)

	cfg, used, err := loadMerged(Options{}, env(nil))
	require.NoError(t, err)
	assert.Contains(t, used, "default config in memory")

	assert.Equal(t, ".", cfg.Output)
	assert.Equal(t, time.Second, cfg.Delay())
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 1, cfg.Workers)
	assert.True(t, cfg.Progress)

	begin, end := cfg.Bounds()
	assert.True(t, begin < -1e308)
	assert.True(t, end > 1e308)
}

func TestPrecedence(t *testing.T) {
	root := isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "configs", "Default.yaml"), path)

	profile := DefaultConfig()
	profile.Output = "/from/profile"
	profile.DelayMS = 500
	profile.Retries = 5
	profile.Language = "gb"
	require.NoError(t, SaveYAML(profile, path))

	vars := map[string]string{
		"BIBE_DELAY":  "250",
		"BIBE_GROUPS": "Alpha, Beta ,",
		"BIBE_BEGIN":  "3",
	}

	cfg, used, err := loadMerged(Options{Retries: ptr(0), End: ptr(9.5)}, env(vars))
	require.NoError(t, err)
	assert.Equal(t, path, used)

	assert.Equal(t, "/from/profile", cfg.Output)
	assert.Equal(t, 250, cfg.DelayMS)
	assert.Equal(t, 0, cfg.Retries, "an explicit zero flag still wins")
	assert.Equal(t, "gb", cfg.Language)
	assert.Equal(t, []string{"Alpha", "Beta"}, cfg.PreferredGroups)

	begin, end := cfg.Bounds()
	assert.Equal(t, 3.0, begin)
	assert.Equal(t, 9.5, end)
}

func TestFlagsBeatEnv(t *testing.T) {
	isolate(t)

	vars := map[string]string{"BIBE_OUTPUT": "/env", "BIBE_URL": "https://env.example", "BIBE_PROGRESS": "true"}
	cfg, _, err := loadMerged(Options{Output: "/flag", NoProgress: true}, env(vars))
	require.NoError(t, err)

	assert.Equal(t, "/flag", cfg.Output)
	assert.Equal(t, "https://env.example", cfg.DefaultURL)
	assert.False(t, cfg.Progress)
}

func TestIgnoreConfig(t *testing.T) {
	isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)
	profile := DefaultConfig()
	profile.Output = "/from/profile"
	require.NoError(t, SaveYAML(profile, path))

	cfg, used, err := loadMerged(Options{IgnoreConfig: true}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "(ignored config)", used)
	assert.Equal(t, ".", cfg.Output)
}

func TestDelayFloor(t *testing.T) {
	isolate(t)

	cfg, _, err := loadMerged(Options{DelayMS: ptr(1)}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.Delay())
}

func TestBeginAfterEndRejected(t *testing.T) {
	isolate(t)

	_, _, err := loadMerged(Options{Begin: ptr(10.0), End: ptr(2.0)}, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin")
}

func TestValidate(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())

	c.Retries = -1
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Workers = 0
	assert.Error(t, c.Validate())
}

func TestExplicitZeroWorkersRejected(t *testing.T) {
	isolate(t)

	_, _, err := loadMerged(Options{Workers: ptr(0)}, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be at least 1")

	cfg, _, err := loadMerged(Options{Workers: ptr(3)}, env(map[string]string{"BIBE_WORKERS": "2"}))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
}

func TestBadEnvValue(t *testing.T) {
	isolate(t)

	_, _, err := loadMerged(Options{}, env(map[string]string{"BIBE_RETRY": "many", "BIBE_CBZ": "maybe"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BIBE_RETRY")
	assert.Contains(t, err.Error(), "BIBE_CBZ")
}

func TestEmptyEnvIgnored(t *testing.T) {
	isolate(t)

	cfg, _, err := loadMerged(Options{}, env(map[string]string{"BIBE_DELAY": "  "}))
	require.NoError(t, err)
	assert.Equal(t, DefaultDelayMS, cfg.DelayMS)
}

func TestProfiles(t *testing.T) {
	isolate(t)

	_, err := InitDefaultConfig()
	require.NoError(t, err)

	_, err = InitDefaultConfig()
	assert.ErrorIs(t, err, os.ErrExist)

	_, err = CreateEmptyConfig("fast")
	require.NoError(t, err)
	_, err = CreateEmptyConfig("fast")
	assert.ErrorIs(t, err, ErrProfileExists)

	require.NoError(t, SwitchConfig("fast"))
	label, err := CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, "fast", label)

	require.NoError(t, RenameConfig("fast", "quick"))
	label, _ = CurrentLabel()
	assert.Equal(t, "quick", label)

	list, err := ListConfigs()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Default", list[0].Label)
	assert.False(t, list[0].Active)
	assert.Equal(t, "quick", list[1].Label)
	assert.True(t, list[1].Active)

	switched, err := RemoveConfig("quick")
	require.NoError(t, err)
	assert.True(t, switched)
	label, _ = CurrentLabel()
	assert.Equal(t, DefaultLabel, label)

	_, err = RemoveConfig(DefaultLabel)
	assert.Error(t, err)

	assert.ErrorIs(t, SwitchConfig("missing"), ErrProfileNotFound)
	_, err = ConfigPathByLabel("missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, RenameConfig("missing", "other"), ErrProfileNotFound)
}

func TestProfileLabels(t *testing.T) {
	root := isolate(t)

	for _, label := range []string{"", "  ", "..", "../outside", `a\b`} {
		_, err := CreateEmptyConfig(label)
		assert.Error(t, err, "label %q", label)
	}
	assert.NoFileExists(t, filepath.Join(root, "outside.yaml"))

	_, err := CreateEmptyConfig("one")
	require.NoError(t, err)
	_, err = CreateEmptyConfig("two")
	require.NoError(t, err)
	assert.ErrorIs(t, RenameConfig("one", "two"), ErrProfileExists)
	assert.FileExists(t, filepath.Join(root, "configs", "one.yaml"))

	entries, err := os.ReadDir(filepath.Join(root, "configs"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestAddConfig(t *testing.T) {
	isolate(t)

	src := filepath.Join(t.TempDir(), "mine.yaml")
	require.NoError(t, os.WriteFile(src, []byte("output: /library\nworkers: 4\n"), 0644))

	require.NoError(t, AddConfig("mine", src))
	require.NoError(t, SwitchConfig("mine"))

	cfg, _, err := loadMerged(Options{}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, "/library", cfg.Output)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, DefaultDelayMS, cfg.DelayMS, "unset keys keep their defaults")

	assert.ErrorIs(t, AddConfig("mine", src), ErrProfileExists)
}

func TestAddConfigRejectsInvalidYAML(t *testing.T) {
	root := isolate(t)

	src := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(src, []byte("workers: [1, 2\n"), 0644))

	err := AddConfig("broken", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.NoFileExists(t, filepath.Join(root, "configs", "broken.yaml"))

	err = AddConfig("gone", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errs.Is(err, errs.KindFilesystem))
}

func TestPrint(t *testing.T) {
	c := DefaultConfig()
	c.Begin = ptr(2.5)
	c.PreferredGroups = []string{"A", "B"}

	var buf bytes.Buffer
	c.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, " -delay_ms: 1000\n")
	assert.Contains(t, out, " -begin: 2.5\n")
	assert.Contains(t, out, " -preferred_groups: A, B\n")
	assert.NotContains(t, out, " -end:")
}
