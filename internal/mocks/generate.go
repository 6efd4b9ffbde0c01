// Package mocks provides generated mock implementations of the portal ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	dir := mocks.NewMockAdminDirectory(ctrl)
//	dir.EXPECT().GetAdmin(gomock.Any(), "user-1").Return(domainauth.AdminMembership{UserID: "user-1"}, nil)
package mocks

// Generate mock for AdminDirectory interface from internal/ports package.
// This creates MockAdminDirectory with methods for all AdminDirectory interface methods:
// GetAdmin
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=admin_directory_mock.go github.com/eventrentals/portal/internal/ports AdminDirectory

// Generate mock for TokenVerifier interface from internal/ports package.
// This creates MockTokenVerifier with methods for all TokenVerifier interface methods:
// Verify
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_verifier_mock.go github.com/eventrentals/portal/internal/ports TokenVerifier

// Generate mock for SessionStore interface from internal/ports package.
// This creates MockSessionStore with methods for all SessionStore interface methods:
// Save, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/eventrentals/portal/internal/ports SessionStore
