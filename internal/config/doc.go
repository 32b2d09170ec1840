// Package config loads dllexports settings with Viper.
//
// Values come from, in increasing precedence: built-in defaults, a
// dllexports.{yaml,yml,toml,json} file (or the file named by --config),
// DLLEXPORTS_* environment variables and changed command-line flags.
package config
