// Package config loads and validates the sweeper's JSON configuration file.
package config
