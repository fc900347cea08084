// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CredentialAuthority: Interactive authentication and refresh exchange
//   - StreamConnector: Opens the persistent streaming connection
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SessionObserver: Presentation of notices and phase changes
//   - EventStore: Session history. Without it, nothing is recorded.
//   - ResourceFetcher: One-shot authenticated requests
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
