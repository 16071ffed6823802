package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"tftgg/internal/gql"
)

// Runtime wraps a goja VM with plugin-specific bindings
type Runtime struct {
	vm     *goja.Runtime
	logger zerolog.Logger
}

// NewRuntime creates a new Runtime with all necessary bindings
func NewRuntime(logger zerolog.Logger) *Runtime {
	vm := goja.New()
	r := &Runtime{
		vm:     vm,
		logger: logger,
	}
	r.setupBindings()
	return r
}

// VM returns the underlying goja runtime
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

func (r *Runtime) setupBindings() {
	r.setupConsole()
	r.setupUtils()
}

// setupConsole creates console.log and console.error bindings
func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()

	console.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		r.logger.Info().Msgf("[plugin] %v", args)
		return goja.Undefined()
	})

	console.Set("error", func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		r.logger.Error().Msgf("[plugin] %v", args)
		return goja.Undefined()
	})

	console.Set("warn", func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		r.logger.Warn().Msgf("[plugin] %v", args)
		return goja.Undefined()
	})

	console.Set("debug", func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		r.logger.Debug().Msgf("[plugin] %v", args)
		return goja.Undefined()
	})

	r.vm.Set("console", console)
}

// setupUtils creates utility functions for plugin scripts
func (r *Runtime) setupUtils() {
	utils := r.vm.NewObject()

	// parseJSON parses a JSON string
	utils.Set("parseJSON", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.ToValue("parseJSON requires string"))
		}
		jsonStr := call.Arguments[0].String()
		var result interface{}
		if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return r.vm.ToValue(result)
	})

	// stringifyJSON converts a value to a JSON string
	utils.Set("stringifyJSON", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.ToValue("stringifyJSON requires value"))
		}
		exported := call.Arguments[0].Export()
		data, err := json.Marshal(exported)
		if err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("JSON stringify error: %v", err)))
		}
		return r.vm.ToValue(string(data))
	})

	r.vm.Set("utils", utils)
}

// SetupGateway creates the gateway object plugins fetch operations through.
// Every fetch runs on the execution context, so a timed-out plugin cannot
// keep issuing upstream work.
func (r *Runtime) SetupGateway(ctx context.Context, fetcher Fetcher) {
	gateway := r.vm.NewObject()

	// fetch resolves a single operation
	gateway.Set("fetch", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.ToValue("gateway.fetch requires an operation name"))
		}
		operation := call.Arguments[0].String()

		args := gql.Args{}
		if len(call.Arguments) >= 2 {
			if m, ok := call.Arguments[1].Export().(map[string]interface{}); ok {
				args = gql.Args(m)
			}
		}

		complexity := 1
		if len(call.Arguments) >= 3 {
			complexity = int(call.Arguments[2].ToInteger())
		}

		result, err := fetcher.Fetch(ctx, operation, args, complexity)
		if err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("fetch failed: %v", err)))
		}
		return r.toJSValue(result)
	})

	// fetchMany resolves several operations concurrently, so each one joins
	// its batch window instead of waiting out the previous fetch
	gateway.Set("fetchMany", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.ToValue("gateway.fetchMany requires an array of fetches"))
		}

		exported := call.Arguments[0].Export()
		entries, ok := exported.([]interface{})
		if !ok {
			panic(r.vm.ToValue("gateway.fetchMany requires an array"))
		}

		requests := make([]FetchRequest, 0, len(entries))
		for _, entry := range entries {
			entryMap, ok := entry.(map[string]interface{})
			if !ok {
				panic(r.vm.ToValue("each fetch must be an object with operation and args"))
			}
			operation, _ := entryMap["operation"].(string)
			req := FetchRequest{Operation: operation, Args: gql.Args{}, Complexity: 1}
			if argsMap, ok := entryMap["args"].(map[string]interface{}); ok {
				req.Args = gql.Args(argsMap)
			}
			switch c := entryMap["complexity"].(type) {
			case int64:
				req.Complexity = int(c)
			case float64:
				req.Complexity = int(c)
			}
			requests = append(requests, req)
		}

		results := make([]gql.Result, len(requests))
		errs := make([]error, len(requests))

		var wg sync.WaitGroup
		for i, req := range requests {
			wg.Add(1)
			go func(i int, req FetchRequest) {
				defer wg.Done()
				results[i], errs[i] = fetcher.Fetch(ctx, req.Operation, req.Args, req.Complexity)
			}(i, req)
		}
		wg.Wait()

		// Per-slot errors become error objects for the plugin to handle
		out := make([]interface{}, len(requests))
		for i := range requests {
			if errs[i] != nil {
				out[i] = map[string]interface{}{
					"error": map[string]interface{}{"message": errs[i].Error()},
				}
				continue
			}
			out[i] = r.exportJSON(results[i])
		}
		return r.vm.ToValue(out)
	})

	r.vm.Set("gateway", gateway)
}

func (r *Runtime) toJSValue(result gql.Result) goja.Value {
	return r.vm.ToValue(r.exportJSON(result))
}

func (r *Runtime) exportJSON(result gql.Result) interface{} {
	var parsed interface{}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return string(result)
	}
	return parsed
}

// RunScript executes JavaScript code and returns the result
func (r *Runtime) RunScript(script string) (goja.Value, error) {
	return r.vm.RunString(script)
}
