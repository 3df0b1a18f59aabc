package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brogergvhs/bibe/internal/util"
)

const (
	DefaultDelayMS = 1000
	MinDelayMS     = 10
	DefaultRetries = 3

	envPrefix = "BIBE_"
)

type Config struct {
	Output          string   `yaml:"output"`
	DelayMS         int      `yaml:"delay_ms"`
	Retries         int      `yaml:"retries"`
	Workers         int      `yaml:"workers"`
	Language        string   `yaml:"language,omitempty"`
	PreferredGroups []string `yaml:"preferred_groups,omitempty"`
	Begin           *float64 `yaml:"begin,omitempty"`
	End             *float64 `yaml:"end,omitempty"`

	DefaultURL string `yaml:"default_url,omitempty"`

	UserAgent  string `yaml:"user_agent,omitempty"`
	Cookie     string `yaml:"cookie,omitempty"`
	CookieFile string `yaml:"cookie_file,omitempty"`
	CFBypass   bool   `yaml:"cf_bypass"`

	CBZ      bool `yaml:"cbz"`
	Debug    bool `yaml:"debug"`
	Progress bool `yaml:"progress"`
}

// Options carries command-line values. Nil pointers and zero values mean
// the flag was not given. Numeric flags are pointers so an explicit zero
// still reaches validation.
type Options struct {
	IgnoreConfig    bool
	Debug           bool
	Output          string
	DelayMS         *int
	Retries         *int
	Workers         *int
	Language        string
	PreferredGroups []string
	Begin           *float64
	End             *float64
	URL             string
	UserAgent       string
	Cookie          string
	CookieFile      string
	CFBypass        bool
	CBZ             bool
	NoProgress      bool
}

func DefaultConfig() *Config {
	return &Config{
		Output:   ".",
		DelayMS:  DefaultDelayMS,
		Retries:  DefaultRetries,
		Workers:  1,
		Progress: true,
	}
}

// Delay is the inter-request delay with the floor applied.
func (c *Config) Delay() time.Duration {
	return time.Duration(max(c.DelayMS, MinDelayMS)) * time.Millisecond
}

// Bounds returns the chapter range, open ends becoming infinite.
func (c *Config) Bounds() (begin, end float64) {
	begin, end = math.Inf(-1), math.Inf(1)
	if c.Begin != nil {
		begin = *c.Begin
	}
	if c.End != nil {
		end = *c.End
	}
	return begin, end
}

func (c *Config) Validate() error {
	if c.DelayMS < MinDelayMS {
		return fmt.Errorf("delay must be at least %dms, got %d", MinDelayMS, c.DelayMS)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative, got %d", c.Retries)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if begin, end := c.Bounds(); begin > end {
		return fmt.Errorf("begin (%g) is greater than end (%g)", begin, end)
	}

	return nil
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return util.AtomicWrite(path, data)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged resolves the effective configuration: defaults, then the active
// profile, then BIBE_* environment variables, then flags. It also returns a
// description of where the profile came from.
func LoadMerged(opts Options) (*Config, string, error) {
	return loadMerged(opts, os.LookupEnv)
}

func loadMerged(opts Options, lookup func(string) (string, bool)) (*Config, string, error) {
	cfg, used, err := loadProfile(opts.IgnoreConfig)
	if err != nil {
		return nil, "", err
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, "", err
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, used, nil
}

func loadProfile(ignore bool) (*Config, string, error) {
	if ignore {
		return DefaultConfig(), "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if errors.Is(err, ErrNoConfig) || activePath == "" {
		return DefaultConfig(), "(default config in memory)\nRun `bibe config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	return cfg, activePath, nil
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []error
	parseInt := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	parseBool := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	parseFloat := func(name string, dst **float64) {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = &f
		}
	}
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	str("URL", &c.DefaultURL)
	str("OUTPUT", &c.Output)
	parseInt("DELAY", &c.DelayMS)
	parseInt("RETRY", &c.Retries)
	parseInt("WORKERS", &c.Workers)
	parseFloat("BEGIN", &c.Begin)
	parseFloat("END", &c.End)
	str("LANGUAGE", &c.Language)
	if v, ok := get("GROUPS"); ok {
		c.PreferredGroups = splitList(v)
	}
	str("USER_AGENT", &c.UserAgent)
	str("COOKIE", &c.Cookie)
	str("COOKIE_FILE", &c.CookieFile)
	parseBool("CF_BYPASS", &c.CFBypass)
	parseBool("CBZ", &c.CBZ)
	parseBool("DEBUG", &c.Debug)
	parseBool("PROGRESS", &c.Progress)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.DelayMS != nil {
		c.DelayMS = *o.DelayMS
	}
	if o.Retries != nil {
		c.Retries = *o.Retries
	}
	if o.Workers != nil {
		c.Workers = *o.Workers
	}
	if o.Language != "" {
		c.Language = o.Language
	}
	if len(o.PreferredGroups) > 0 {
		c.PreferredGroups = o.PreferredGroups
	}
	if o.Begin != nil {
		c.Begin = o.Begin
	}
	if o.End != nil {
		c.End = o.End
	}
	if o.URL != "" {
		c.DefaultURL = o.URL
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.CFBypass {
		c.CFBypass = true
	}
	if o.CBZ {
		c.CBZ = true
	}
	if o.Debug {
		c.Debug = true
	}
	if o.NoProgress {
		c.Progress = false
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.DelayMS < MinDelayMS {
		c.DelayMS = MinDelayMS
	}
}

func (c *Config) Print(w io.Writer) {
	fmt.Fprintf(w, " -output: %s\n", c.Output)
	fmt.Fprintf(w, " -delay_ms: %d\n", c.DelayMS)
	fmt.Fprintf(w, " -retries: %d\n", c.Retries)
	fmt.Fprintf(w, " -workers: %d\n", c.Workers)
	if c.Language != "" {
		fmt.Fprintf(w, " -language: %s\n", c.Language)
	}
	if len(c.PreferredGroups) > 0 {
		fmt.Fprintf(w, " -preferred_groups: %s\n", strings.Join(c.PreferredGroups, ", "))
	}
	if c.Begin != nil {
		fmt.Fprintf(w, " -begin: %g\n", *c.Begin)
	}
	if c.End != nil {
		fmt.Fprintf(w, " -end: %g\n", *c.End)
	}
	if c.DefaultURL != "" {
		fmt.Fprintf(w, " -url: %s\n", c.DefaultURL)
	}
	if c.UserAgent != "" {
		fmt.Fprintf(w, " -user_agent: %s\n", c.UserAgent)
	}
	if c.CookieFile != "" {
		fmt.Fprintf(w, " -cookie_file: %s\n", c.CookieFile)
	}
	if c.CFBypass {
		fmt.Fprintf(w, " -cf_bypass: %t\n", c.CFBypass)
	}
	if c.CBZ {
		fmt.Fprintf(w, " -cbz: %t\n", c.CBZ)
	}
	if c.Debug {
		fmt.Fprintf(w, " -debug: %t\n", c.Debug)
	}
	if !c.Progress {
		fmt.Fprintf(w, " -progress: %t\n", c.Progress)
	}
}
