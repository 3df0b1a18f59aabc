package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brogergvhs/bibe/internal/errs"
	"github.com/brogergvhs/bibe/internal/util"
)

const (
	DefaultLabel = "Default"

	profileExt = ".yaml"
)

var (
	ErrNoConfig        = errors.New("no config selected")
	ErrProfileNotFound = fmt.Errorf("config does not exist: %w", fs.ErrNotExist)
	ErrProfileExists   = fmt.Errorf("config already exists: %w", fs.ErrExist)
)

// ConfigRoot is $APPDATA/bibe, $XDG_CONFIG_HOME/bibe or ~/.config/bibe.
func ConfigRoot() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "bibe")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bibe")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bibe")
}

func ConfigsDir() string {
	return filepath.Join(ConfigRoot(), "configs")
}

func CurrentLabelFile() string {
	return filepath.Join(ConfigRoot(), "current_config")
}

// profilePath maps a label to its file. Labels are plain file names.
func profilePath(label string) (string, error) {
	if strings.TrimSpace(label) == "" {
		return "", errors.New("label cannot be empty")
	}
	if label == "." || label == ".." || strings.ContainsAny(label, `/\`) {
		return "", fmt.Errorf("invalid config label %q", label)
	}

	return filepath.Join(ConfigsDir(), label+profileExt), nil
}

// existingProfile returns the path of label, which must exist.
func existingProfile(label string) (string, error) {
	path, err := profilePath(label)
	if err != nil {
		return "", err
	}
	if !util.Exists(path) {
		return "", fmt.Errorf("%w: %q", ErrProfileNotFound, label)
	}

	return path, nil
}

// newProfile returns the path of label, which must not exist yet.
func newProfile(label string) (string, error) {
	path, err := profilePath(label)
	if err != nil {
		return "", err
	}
	if err := util.MkdirAll(ConfigsDir()); err != nil {
		return "", err
	}
	if util.Exists(path) {
		return path, fmt.Errorf("%w: %q", ErrProfileExists, label)
	}

	return path, nil
}

// ConfigPathByLabel returns the path of an existing profile.
func ConfigPathByLabel(label string) (string, error) {
	return existingProfile(label)
}

func CurrentLabel() (string, error) {
	b, err := os.ReadFile(CurrentLabelFile())
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoConfig
	}
	if err != nil {
		return "", errs.Filesystem("read", CurrentLabelFile(), err)
	}

	return strings.TrimSpace(string(b)), nil
}

func setCurrentLabel(label string) error {
	if err := util.MkdirAll(ConfigRoot()); err != nil {
		return err
	}

	return util.AtomicWrite(CurrentLabelFile(), []byte(label))
}

func ActiveConfigPath() (string, error) {
	label, err := CurrentLabel()
	if err != nil || label == "" {
		return "", ErrNoConfig
	}

	return profilePath(label)
}

type ConfigInfo struct {
	Label  string
	Path   string
	Active bool
}

func ListConfigs() ([]ConfigInfo, error) {
	entries, err := os.ReadDir(ConfigsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Filesystem("readdir", ConfigsDir(), err)
	}

	active, _ := CurrentLabel()

	var out []ConfigInfo
	for _, e := range entries {
		label, ok := strings.CutSuffix(e.Name(), profileExt)
		if e.IsDir() || !ok {
			continue
		}

		out = append(out, ConfigInfo{
			Label:  label,
			Path:   filepath.Join(ConfigsDir(), e.Name()),
			Active: label == active,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func SwitchConfig(label string) error {
	if _, err := existingProfile(label); err != nil {
		return err
	}

	return setCurrentLabel(label)
}

// AddConfig copies the YAML file at srcPath into a new profile. The file
// must parse as a config.
func AddConfig(label, srcPath string) error {
	dst, err := newProfile(label)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return errs.Filesystem("read", srcPath, err)
	}
	if err := yaml.Unmarshal(raw, DefaultConfig()); err != nil {
		return fmt.Errorf("invalid config %s: %w", srcPath, err)
	}

	return util.AtomicWrite(dst, raw)
}

// CreateEmptyConfig writes a new profile with default values.
func CreateEmptyConfig(label string) (string, error) {
	path, err := newProfile(label)
	if err != nil {
		return "", err
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, nil
}

// RenameConfig renames a profile and keeps it active if it was.
func RenameConfig(oldLabel, newLabel string) error {
	oldPath, err := existingProfile(oldLabel)
	if err != nil {
		return err
	}
	newPath, err := newProfile(newLabel)
	if err != nil {
		return err
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return errs.Filesystem("rename", newPath, err)
	}

	if active, _ := CurrentLabel(); active == oldLabel {
		return setCurrentLabel(newLabel)
	}

	return nil
}

// RemoveConfig deletes a profile. Removing the active one switches back to
// Default and reports it through switched.
func RemoveConfig(label string) (switched bool, err error) {
	if label == DefaultLabel {
		return false, errors.New("cannot remove the Default config")
	}

	path, err := existingProfile(label)
	if err != nil {
		return false, err
	}

	if active, _ := CurrentLabel(); active == label {
		if err := SwitchConfig(DefaultLabel); err != nil {
			return false, fmt.Errorf("failed switching to Default: %w", err)
		}
		switched = true
	}

	if err := os.Remove(path); err != nil {
		return switched, errs.Filesystem("remove", path, err)
	}

	return switched, nil
}

// InitDefaultConfig creates the Default profile and makes it active. An
// existing Default is kept, made active and reported with ErrProfileExists.
func InitDefaultConfig() (string, error) {
	path, err := newProfile(DefaultLabel)
	if errors.Is(err, ErrProfileExists) {
		return path, errors.Join(err, setCurrentLabel(DefaultLabel))
	}
	if err != nil {
		return "", err
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, setCurrentLabel(DefaultLabel)
}
