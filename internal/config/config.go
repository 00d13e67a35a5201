// Package config provides configuration loading.
//
// Scalar settings live in a string map layered as defaults, environment
// (MAILDIRWATCH_*), the TOML file, then environment again. Patterns and
// actions are parsed into typed values and validated at load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/cristianoliveira/maildirwatch/internal/actions"
	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
	"github.com/cristianoliveira/maildirwatch/internal/pattern"
)

// File permission constants
const (
	// FileModeDir is the permission for directories (rwxr-xr-x)
	FileModeDir os.FileMode = 0755
	// FileModeFile is the permission for data files (rw-r--r--)
	FileModeFile os.FileMode = 0644

	// FileExtTOML is the file extension for TOML configuration files.
	FileExtTOML = ".toml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MAILDIRWATCH_"
	// EnvConfigPath names the configuration file.
	EnvConfigPath = EnvPrefix + "CONFIG_PATH"
)

// List keys hold arrays in the file and comma-separated values in the environment.
const (
	keyIgnore         = "ignore"
	keyWhitelist      = "whitelist"
	keyInhibitCommand = "inhibit_command"
	keyAction         = "action"
)

var (
	config    map[string]string
	configMap map[string]string
	lists     map[string][]string
	table     *actions.Table
	patterns  pattern.Set
	loaded    string
	mu        sync.RWMutex
)

func init() {
	initValidators()
	reset()
	setDefaults()
}

func reset() {
	config = make(map[string]string)
	configMap = make(map[string]string)
	lists = make(map[string][]string)
	table = nil
	patterns = pattern.Set{}
	loaded = ""
}

// Load initializes configuration. path overrides $MAILDIRWATCH_CONFIG_PATH
// and the default location. Malformed files, patterns and actions are
// ErrConfigInvalid; invalid scalar values fall back to their defaults with a
// warning.
func Load(path string) error {
	mu.Lock()
	defer mu.Unlock()

	// Reset to defaults
	reset()
	setDefaults()
	// Apply environment variable overrides
	loadFromEnv()
	// Load from configuration file
	specs, err := loadFromFile(path)
	if err != nil {
		return err
	}
	// Re-apply environment variable overrides so env wins
	loadFromEnv()
	// Validate and normalize values
	validate()
	// Build typed values
	if err := buildPatterns(); err != nil {
		return err
	}
	if err := buildActions(specs); err != nil {
		return err
	}
	// Create sample config if none exists
	if path == "" && os.Getenv(EnvConfigPath) == "" {
		createSampleConfig()
	}
	return nil
}

// setDefaults populates config with default values.
func setDefaults() {
	// Compute XDG directories
	home, _ := os.UserHomeDir()
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		xdgConfigHome = filepath.Join(home, ".config")
	}
	xdgStateHome := os.Getenv("XDG_STATE_HOME")
	if xdgStateHome == "" {
		xdgStateHome = filepath.Join(home, ".local", "state")
	}

	setDefault("config_dir", filepath.Join(xdgConfigHome, "maildirwatch"))
	setDefault("state_dir", filepath.Join(xdgStateHome, "maildirwatch"))
	setDefault("maildir", "~/Maildir")
	setDefault("nested_maildirs", "false")
	setDefault("debounce", "2s")
	setDefault("inhibit_timeout", "10")
	setDefault("notifier", "dbus")
	setDefault("tmux_socket", "")
	setDefault("default_action", "")
	setDefault("logging_enabled", "false")
	setDefault("logging_level", "info")
	setDefault("logging_max_files", "10")
	setDefault("journal_enabled", "false")
	setDefault("journal_max_rows", "1000")
	setDefault("debug", "false")
	setDefault("quiet", "false")
}

func setDefault(key, value string) {
	config[key] = value
	configMap[key] = value
}

// filePath resolves the configuration file to read.
func filePath(path string) (string, bool) {
	if path != "" {
		return path, true
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, true
	}
	return filepath.Join(config["config_dir"], "config"+FileExtTOML), false
}

// loadFromFile reads configuration from a file. An explicitly named file
// must exist; the default location is optional.
func loadFromFile(path string) ([]actions.Spec, error) {
	configPath, explicit := filePath(path)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file %s: %v: %w", configPath, err, mwerrors.ErrConfigInvalid)
	}
	if ext := strings.ToLower(filepath.Ext(configPath)); ext != FileExtTOML {
		return nil, fmt.Errorf("config file %s: unsupported format %q: %w", configPath, ext, mwerrors.ErrConfigInvalid)
	}

	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %v: %w", configPath, err, mwerrors.ErrConfigInvalid)
	}
	loaded = configPath

	var specs []actions.Spec
	for k, v := range raw {
		key := strings.ToLower(k)
		switch key {
		case keyIgnore, keyWhitelist:
			values, ok := coerceStringList(v)
			if !ok {
				return nil, fmt.Errorf("%s must be an array of strings: %w", key, mwerrors.ErrConfigInvalid)
			}
			lists[key] = values
		case keyInhibitCommand:
			argv, ok := coerceCommand(v)
			if !ok {
				return nil, fmt.Errorf("%s must be a string or an array of strings: %w", key, mwerrors.ErrConfigInvalid)
			}
			lists[key] = argv
		case keyAction:
			specs, err = parseActions(v)
			if err != nil {
				return nil, err
			}
		default:
			converted, ok := coerceConfigValue(v)
			if !ok {
				log.Warn(fmt.Sprintf("unsupported config value type for %s: %T", key, v))
				continue
			}
			config[key] = converted
		}
	}
	return specs, nil
}

// parseActions decodes the [[action]] array of tables.
func parseActions(v interface{}) ([]actions.Spec, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("action must be an array of tables ([[action]]): %w", mwerrors.ErrConfigInvalid)
	}
	specs := make([]actions.Spec, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("action #%d must be a table: %w", i+1, mwerrors.ErrConfigInvalid)
		}
		name, _ := fields["name"].(string)
		argv, ok := coerceCommand(fields["command"])
		if !ok {
			return nil, fmt.Errorf("action %q: command must be a string or an array of strings: %w", name, mwerrors.ErrConfigInvalid)
		}
		specs = append(specs, actions.Spec{Name: name, Argv: argv})
	}
	return specs, nil
}

// coerceConfigValue converts a configuration value to its string representation.
// Supported types are string, int, int64, float64, and bool.
func coerceConfigValue(value interface{}) (string, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return "", false
	}
}

func coerceStringList(value interface{}) ([]string, bool) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// coerceCommand accepts an argv array or a whitespace-separated command line.
func coerceCommand(value interface{}) ([]string, bool) {
	if s, ok := value.(string); ok {
		return strings.Fields(s), true
	}
	return coerceStringList(value)
}

// loadFromEnv applies environment variable overrides.
func loadFromEnv() {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, EnvPrefix) {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(parts[0], EnvPrefix))
		switch key {
		case "config_path":
			continue
		case keyIgnore, keyWhitelist:
			lists[key] = splitList(parts[1])
		case keyInhibitCommand:
			lists[key] = strings.Fields(parts[1])
		default:
			config[key] = parts[1]
		}
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// validate checks and normalizes configuration values using registered validators.
func validate() {
	for key, value := range config {
		validator := getValidator(key)
		if validator == nil {
			continue // No validator for this key
		}
		defaultValue := configMap[key]
		normalizedValue, err := validator(key, value, defaultValue)
		if err != nil {
			log.Warn(fmt.Sprintf("validation error for %s: %v, using default: %s", key, err, defaultValue))
			config[key] = defaultValue
		} else {
			config[key] = normalizedValue
		}
	}
}

func buildPatterns() error {
	patterns = pattern.Set{Ignore: lists[keyIgnore], Whitelist: lists[keyWhitelist]}
	return patterns.Validate()
}

func buildActions(specs []actions.Spec) error {
	t, err := actions.NewTable(specs, strings.TrimSpace(config["default_action"]))
	if err != nil {
		return err
	}
	table = t
	return nil
}

// createSampleConfig creates a sample configuration file if none exists.
func createSampleConfig() {
	configDir := config["config_dir"]
	if configDir == "" {
		return
	}
	samplePath := filepath.Join(configDir, "config"+FileExtTOML)
	if _, err := os.Stat(samplePath); err == nil {
		return // file exists
	}
	if err := os.MkdirAll(configDir, FileModeDir); err != nil {
		log.Warn(fmt.Sprintf("unable to create config directory %s: %v", configDir, err))
		return
	}

	// Build typed map from configMap (defaults)
	typed := make(map[string]interface{})
	for k, v := range configMap {
		if k == "config_dir" || k == "state_dir" || k == "debug" || k == "quiet" {
			continue
		}
		typed[k] = valueToInterface(v)
	}
	typed[keyIgnore] = []string{}
	typed[keyWhitelist] = []string{}

	data, err := toml.Marshal(typed)
	if err != nil {
		log.Warn(fmt.Sprintf("unable to marshal sample config: %v", err))
		return
	}
	if err := os.WriteFile(samplePath, append([]byte(sampleHeader), data...), FileModeFile); err != nil {
		log.Warn(fmt.Sprintf("unable to write sample config to %s: %v", samplePath, err))
	}
}

const sampleHeader = `# maildirwatch configuration
# This file is in TOML format.
#
# Actions are shown as notification buttons. default_action names the one
# run when the notification itself is clicked:
#
#   default_action = "Show mu4e"
#
#   [[action]]
#   name = "Show mu4e"
#   command = ["emacsclient", "-e", "(mu4e)"]

`

// valueToInterface converts a configuration value to appropriate type for TOML.
func valueToInterface(val string) interface{} {
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return val
}

// Get returns a configuration value or default.
func Get(key, defaultValue string) string {
	mu.RLock()
	defer mu.RUnlock()
	if val, ok := config[key]; ok {
		return val
	}
	return defaultValue
}

// Set overrides a scalar value, running its validator. Used for command-line flags.
func Set(key, value string) {
	mu.Lock()
	defer mu.Unlock()
	if validator := getValidator(key); validator != nil {
		if normalized, err := validator(key, value, config[key]); err == nil {
			value = normalized
		}
	}
	config[key] = value
}

// GetInt returns a configuration value as integer, or default.
func GetInt(key string, defaultValue int) int {
	mu.RLock()
	defer mu.RUnlock()
	val, ok := config[key]
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetBool returns a configuration value as boolean, or default.
func GetBool(key string, defaultValue bool) bool {
	mu.RLock()
	defer mu.RUnlock()
	val, ok := config[key]
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// GetDuration returns a configuration value as a duration, or default.
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	val, ok := config[key]
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}
	return d
}

// Patterns returns the validated ignore and whitelist patterns.
func Patterns() pattern.Set {
	mu.RLock()
	defer mu.RUnlock()
	return pattern.Set{
		Ignore:    append([]string(nil), patterns.Ignore...),
		Whitelist: append([]string(nil), patterns.Whitelist...),
	}
}

// Actions returns the validated action table.
func Actions() *actions.Table {
	mu.RLock()
	defer mu.RUnlock()
	return table
}

// InhibitCommand returns the inhibition argv, or nil when unset.
func InhibitCommand() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), lists[keyInhibitCommand]...)
}

// InhibitTimeout returns the inhibition check timeout.
func InhibitTimeout() time.Duration {
	return time.Duration(GetInt("inhibit_timeout", 10)) * time.Second
}

// Root returns the absolute scan root with a leading ~ expanded.
func Root() (string, error) {
	root := Get("maildir", "~/Maildir")
	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", root, err)
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~"))
	}
	return filepath.Abs(root)
}

// Path returns the configuration file that was read, or "".
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return loaded
}
