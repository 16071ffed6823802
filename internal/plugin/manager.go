package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"tftgg/internal/gql"
)

// DefaultExecutionTimeout is the default timeout for plugin execution
const DefaultExecutionTimeout = 30 * time.Second

// operationDirectiveRegex matches the @operation directive in comments
var operationDirectiveRegex = regexp.MustCompile(`(?m)^//\s*@operation\s+(\S+)`)

// PluginManager manages JavaScript plugins
type PluginManager struct {
	plugins map[string]*Plugin // operation -> plugin
	logger  zerolog.Logger
	timeout time.Duration
	mu      sync.RWMutex
}

// NewPluginManager creates a new PluginManager
func NewPluginManager(logger zerolog.Logger) *PluginManager {
	return &PluginManager{
		plugins: make(map[string]*Plugin),
		logger:  logger.With().Str("component", "plugin-manager").Logger(),
		timeout: DefaultExecutionTimeout,
	}
}

// SetTimeout sets the execution timeout for plugins
func (m *PluginManager) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// LoadFromDirectory loads all .js plugins from a directory
func (m *PluginManager) LoadFromDirectory(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		m.logger.Warn().Str("directory", dir).Msg("plugins directory does not exist")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat plugins directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plugins path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read plugins directory: %w", err)
	}

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}

		pluginPath := filepath.Join(dir, entry.Name())
		if err := m.loadPlugin(pluginPath); err != nil {
			m.logger.Error().
				Err(err).
				Str("file", entry.Name()).
				Msg("failed to load plugin")
			continue
		}
		loadedCount++
	}

	m.logger.Info().
		Int("loaded", loadedCount).
		Str("directory", dir).
		Msg("plugins loaded")

	return nil
}

// loadPlugin loads a single plugin from a file
func (m *PluginManager) loadPlugin(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plugin file: %w", err)
	}

	script := string(content)

	operation := extractOperationDirective(script)
	if operation == "" {
		return fmt.Errorf("plugin missing @operation directive")
	}

	if _, exists := m.plugins[operation]; exists {
		return fmt.Errorf("duplicate operation: %s", operation)
	}

	// VM is created per execution, only the source is kept here
	name := strings.TrimSuffix(filepath.Base(path), ".js")
	plugin := &Plugin{
		Name:      name,
		Operation: operation,
		Script:    script,
	}

	m.plugins[operation] = plugin

	m.logger.Info().
		Str("name", name).
		Str("operation", operation).
		Str("file", filepath.Base(path)).
		Msg("plugin loaded")

	return nil
}

// extractOperationDirective extracts the operation name from the @operation directive
func extractOperationDirective(script string) string {
	matches := operationDirectiveRegex.FindStringSubmatch(script)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// HasPlugin checks if a plugin exists for the given operation
func (m *PluginManager) HasPlugin(operation string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.plugins[operation]
	return exists
}

type execOutcome struct {
	result gql.Result
	err    error
}

// Execute runs the plugin for the given operation
func (m *PluginManager) Execute(ctx context.Context, operation string, args gql.Args, fetcher Fetcher) (gql.Result, error) {
	m.mu.RLock()
	plugin, exists := m.plugins[operation]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, operation)
	}

	execCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// Run in a goroutine so a stuck script cannot hold the caller past the
	// timeout. The VM itself keeps running until its next fetch fails on the
	// cancelled context.
	resultCh := make(chan execOutcome, 1)
	go func() {
		resultCh <- m.executePlugin(execCtx, plugin, args, fetcher)
	}()

	select {
	case <-execCtx.Done():
		if execCtx.Err() == context.DeadlineExceeded {
			m.logger.Warn().
				Str("operation", operation).
				Dur("timeout", m.timeout).
				Msg("plugin execution timed out")
			return nil, ErrTimeout
		}
		return nil, execCtx.Err()
	case outcome := <-resultCh:
		return outcome.result, outcome.err
	}
}

// executePlugin runs the plugin with the given arguments
func (m *PluginManager) executePlugin(ctx context.Context, plugin *Plugin, args gql.Args, fetcher Fetcher) execOutcome {
	// Fresh runtime for this execution (thread safety)
	runtime := NewRuntime(m.logger)
	runtime.SetupGateway(ctx, fetcher)

	if _, err := runtime.RunScript(plugin.Script); err != nil {
		m.logger.Error().
			Err(err).
			Str("plugin", plugin.Name).
			Msg("failed to load plugin script")
		return execOutcome{err: fmt.Errorf("script error: %w", err)}
	}

	result, err := m.callExecute(runtime, args)
	if err != nil {
		m.logger.Error().
			Err(err).
			Str("plugin", plugin.Name).
			Msg("plugin execution failed")
		return execOutcome{err: err}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return execOutcome{err: fmt.Errorf("failed to marshal plugin result: %w", err)}
	}

	return execOutcome{result: data}
}

// callExecute calls the execute function in the plugin
func (m *PluginManager) callExecute(runtime *Runtime, args gql.Args) (interface{}, error) {
	vm := runtime.VM()

	executeVal := vm.Get("execute")
	if executeVal == nil || goja.IsUndefined(executeVal) {
		return nil, fmt.Errorf("execute function not defined")
	}

	execute, ok := goja.AssertFunction(executeVal)
	if !ok {
		return nil, fmt.Errorf("execute is not a function")
	}

	if args == nil {
		args = gql.Args{}
	}

	gatewayVal := vm.Get("gateway")

	result, err := execute(goja.Undefined(), vm.ToValue(map[string]interface{}(args)), gatewayVal)
	if err != nil {
		if jsErr, ok := err.(*goja.Exception); ok {
			return nil, fmt.Errorf("%s", jsErr.String())
		}
		return nil, err
	}

	return result.Export(), nil
}

// Operations returns all registered plugin operations
func (m *PluginManager) Operations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]string, 0, len(m.plugins))
	for operation := range m.plugins {
		operations = append(operations, operation)
	}
	return operations
}

// Close releases all resources
func (m *PluginManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins = make(map[string]*Plugin)
	m.logger.Info().Msg("plugin manager closed")
}
