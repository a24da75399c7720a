// Package config loads, normalizes, and validates Weft configuration.
//
// Configuration comes from a TOML file (default ~/.config/weft/config.toml or
// ./weft.toml) with WEFT_-prefixed environment variables taking precedence.
// Path fields are expanded to absolute paths during load so downstream code
// never handles ~ or relative segments.
package config
