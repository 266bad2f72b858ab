// Package handler defines the inference handlers the model server loads by
// identifier, and the registry that resolves them.
package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrUnknownHandler is returned when no handler is registered under an
// identifier.
var ErrUnknownHandler = errors.New("unknown handler")

// Request is a single inference request.
type Request struct {
	ID          string
	ContentType string
	Accept      string
	Body        []byte
}

// Response is the handler's answer to a Request.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Handler serves inference requests against a loaded model.
type Handler interface {
	// Load prepares the handler; the server calls it once before serving.
	Load(ctx context.Context) error
	// Ping reports whether the handler can take requests.
	Ping(ctx context.Context) error
	Invoke(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

// Context is what a Factory gets to build a handler.
type Context struct {
	Name           string
	ModelDir       string
	CodeDir        string
	StartupTimeout time.Duration
	Log            logrus.FieldLogger
}

// Factory builds a Handler for a resolved identifier.
type Factory func(hc Context) (Handler, error)

// Registry maps handler identifiers to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultHandlerService is the identifier the serve mode loads.
const DefaultHandlerService = "serving.handler"

// DefaultRegistry returns a Registry with the process-backed handler
// registered under DefaultHandlerService.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(DefaultHandlerService, NewProcessHandler)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves hc.Name and constructs the handler.
func (r *Registry) Build(hc Context) (Handler, error) {
	r.mu.RLock()
	f, ok := r.factories[hc.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %s)", ErrUnknownHandler, hc.Name, strings.Join(r.Names(), ", "))
	}
	h, err := f(hc)
	if err != nil {
		return nil, fmt.Errorf("build handler %q: %w", hc.Name, err)
	}
	return h, nil
}
