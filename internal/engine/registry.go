package engine

import (
	"fmt"
	"sync"

	"github.com/mhalonen/virta/pkg/api"
)

// toolRegistry maps tool names to callables. It is write-rarely, read-often:
// registration is an administrative setup operation, resolution happens on
// every node execution.
type toolRegistry struct {
	mu    sync.RWMutex
	tools map[string]api.ToolFunc
}

func newToolRegistry() *toolRegistry {
	return &toolRegistry{
		tools: make(map[string]api.ToolFunc),
	}
}

func (r *toolRegistry) Register(name string, fn api.ToolFunc) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("tool %q has nil function", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = fn
	return nil
}

func (r *toolRegistry) Resolve(name string) (api.ToolFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	return fn, ok
}
