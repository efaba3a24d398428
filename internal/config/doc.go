// Package config loads, normalizes, and validates modrelay configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TELEGRAM_BOT_TOKEN and MODRELAY_API_TOKEN. The Config type centralizes every
// knob the daemon and CLI need so the store location, bot credentials, and feed
// cadence are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
