// Package config loads Canopy configuration from CANOPY_* environment
// variables with sensible defaults and startup validation.
package config
