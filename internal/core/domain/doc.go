// Package domain defines the core business entities for hublink.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - CredentialState: An access/refresh token pair with expiries
//   - Phase: The session supervisor's lifecycle state
//   - Notice: A user-visible notification
//   - SessionEvent: An entry of the persisted session history
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
