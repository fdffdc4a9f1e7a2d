// Package api provides an HTTP API for the portal: the materials catalog,
// download analytics, study guides and referral codes.
package api

import "github.com/eduspark/portal/pkg/portal"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// JWTSecret verifies bearer access tokens.
	JWTSecret string

	// Catalog is the materials catalog served under /v1/materials.
	Catalog []portal.Material
}
