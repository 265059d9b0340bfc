// Package middleware provides request authentication and rate limiting
// for the HTTP API. Request logging, metrics and recovery middleware live
// in pkg/httputil.
package middleware
