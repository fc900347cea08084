// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services import only domain, the port packages, the logger and
// github.com/google/uuid for identifiers. No CGO.
package services
