// Package config handles configuration loading with environment variable
// substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation. Files ending in .toml are decoded as TOML; anything else is
// YAML. A .env file next to the config (or named explicitly) is loaded into
// the environment first, without overriding variables that are already set.
package config
