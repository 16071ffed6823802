package plugin

import (
	"context"
	"errors"

	"tftgg/internal/gql"
)

// Plugin represents a loaded JavaScript plugin
type Plugin struct {
	Name      string // plugin name (filename without extension)
	Operation string // operation this plugin resolves
	Script    string // JavaScript source code
}

// Manager defines the plugin manager interface
type Manager interface {
	// HasPlugin checks if a plugin exists for the given operation
	HasPlugin(operation string) bool
	// Execute runs the plugin for the given operation
	Execute(ctx context.Context, operation string, args gql.Args, fetcher Fetcher) (gql.Result, error)
	// Operations returns all registered plugin operations
	Operations() []string
	// Close releases all resources
	Close()
}

// Fetcher resolves operations on behalf of a running plugin.
type Fetcher interface {
	Fetch(ctx context.Context, operation string, args gql.Args, complexity int) (gql.Result, error)
}

// FetchRequest represents a single fetch in a gateway.fetchMany call
type FetchRequest struct {
	Operation  string   `json:"operation"`
	Args       gql.Args `json:"args"`
	Complexity int      `json:"complexity"`
}

var (
	// ErrNotFound means no plugin claims the operation.
	ErrNotFound = errors.New("plugin not found")
	// ErrTimeout means the plugin ran past its execution timeout.
	ErrTimeout = errors.New("plugin execution timed out")
)
