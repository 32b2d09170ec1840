package config

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wippyai/dllexports/errors"
	"github.com/wippyai/dllexports/request"
)

const (
	// FileName is the config file name searched for, without extension.
	FileName = "dllexports"
	// EnvPrefix prefixes every environment variable the loader reads.
	EnvPrefix = "DLLEXPORTS"
)

// Config is the resolved configuration of one dllexports run.
type Config struct {
	Input         string   `mapstructure:"input"`
	Output        string   `mapstructure:"output"`
	NameFormat    string   `mapstructure:"name_format"`
	Architectures []string `mapstructure:"architectures"`
	Enabled       bool     `mapstructure:"enabled"`
	RemoveInput   bool     `mapstructure:"remove_input"`
	Verbose       bool     `mapstructure:"verbose"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Architectures: []string{},
	}
}

// Request converts the configuration into an export request. Paths are passed
// through unchanged; a missing output is reported by request validation.
func (c Config) Request() request.Request {
	return request.Request{
		InputPath:     c.Input,
		OutputPath:    c.Output,
		NameFormat:    c.NameFormat,
		Architectures: append([]string(nil), c.Architectures...),
		Enabled:       c.Enabled,
		RemoveInput:   c.RemoveInput,
	}
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is used exclusively when set and must exist.
	ConfigFile string
	// SearchDir is searched for dllexports.{yaml,yml,toml,json} when
	// ConfigFile is empty. Empty means the working directory.
	SearchDir string
	// Flags are bound over file and environment values. Only flags the user
	// changed take precedence.
	Flags *pflag.FlagSet
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"input":        "input",
	"output":       "output",
	"arch":         "architectures",
	"name-format":  "name_format",
	"enabled":      "enabled",
	"remove-input": "remove_input",
	"verbose":      "verbose",
}

// Load resolves configuration from defaults, an optional file, DLLEXPORTS_*
// environment variables and flags, in increasing precedence. It returns the
// config and the file it was read from, if any.
func Load(opts LoadOptions) (Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("input", defaults.Input)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("name_format", defaults.NameFormat)
	v.SetDefault("architectures", defaults.Architectures)
	v.SetDefault("enabled", defaults.Enabled)
	v.SetDefault("remove_input", defaults.RemoveInput)
	v.SetDefault("verbose", defaults.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, "", errors.InvalidConfiguration(name, err.Error())
				}
			}
		}
	}

	resolved, err := readConfigFile(v, opts)
	if err != nil {
		return Config{}, "", err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", errors.Wrap(errors.PhaseValidate, errors.KindInvalidConfiguration, err, "decode configuration")
	}
	cfg.Architectures = splitArchitectures(cfg.Architectures)
	return cfg, resolved, nil
}

func readConfigFile(v *viper.Viper, opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return "", errors.New(errors.PhaseValidate, errors.KindInvalidConfiguration).
				Path("config").
				Value(opts.ConfigFile).
				Cause(err).
				Detail("config file %s not found", opts.ConfigFile).
				Build()
		}
		v.SetConfigFile(opts.ConfigFile)
	} else {
		dir := opts.SearchDir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return "", nil
		}
		return "", errors.Wrap(errors.PhaseValidate, errors.KindInvalidConfiguration, err, "read config file")
	}
	return v.ConfigFileUsed(), nil
}

// splitArchitectures accepts comma separated entries and drops blanks, so
// DLLEXPORTS_ARCHITECTURES="I386, AMD64" and repeated --arch flags agree.
func splitArchitectures(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, a := range strings.Split(entry, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}
