// Package config loads, normalizes, and validates ribodb configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the KRAKEN2_DEFAULT_DB environment
// fallback. Config.Fingerprint exposes the parameters whose change between
// runs invalidates stored checkpoints.
package config
