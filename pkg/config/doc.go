// Package config loads and validates service configuration from
// environment variables. All variables are prefixed with HUDDLE_.
package config
