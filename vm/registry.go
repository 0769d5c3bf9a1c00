package vm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/tolelom/tolstake/core"
)

// Handler is the function signature every transaction module must implement.
type Handler func(ctx *Context, payload json.RawMessage) error

// ErrUnknownTxType is returned for a transaction type nothing registered.
var ErrUnknownTxType = errors.New("no handler registered for tx type")

// ErrNotPayable is returned when a non-zero value is attached to a
// transaction type that does not accept payment.
var ErrNotPayable = errors.New("tx type does not accept value")

type entry struct {
	handler Handler
	payable bool
}

// Registry maps TxTypes to Handlers. Thread-safe for concurrent registration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.TxType]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.TxType]entry)}
}

// Register associates typ with h. Panics on duplicate registration.
func (r *Registry) Register(typ core.TxType, h Handler) {
	r.add(typ, entry{handler: h})
}

// RegisterPayable is Register for handlers that accept an attached value.
func (r *Registry) RegisterPayable(typ core.TxType, h Handler) {
	r.add(typ, entry{handler: h, payable: true})
}

func (r *Registry) add(typ core.TxType, e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[typ]; exists {
		panic(fmt.Sprintf("vm: handler already registered for TxType %q", typ))
	}
	r.handlers[typ] = e
}

// Payable reports whether typ is registered and accepts a value.
func (r *Registry) Payable(typ core.TxType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[typ].payable
}

// Types lists every registered TxType.
func (r *Registry) Types() []core.TxType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.TxType, 0, len(r.handlers))
	for typ := range r.handlers {
		out = append(out, typ)
	}
	return out
}

// Execute dispatches payload to the handler registered for typ.
func (r *Registry) Execute(typ core.TxType, ctx *Context, payload json.RawMessage) error {
	r.mu.RLock()
	e, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return errors.Wrapf(ErrUnknownTxType, "%q", typ)
	}
	if !e.payable && ctx.Payment().Sign() != 0 {
		return errors.Wrapf(ErrNotPayable, "%q", typ)
	}
	return e.handler(ctx, payload)
}

// globalRegistry is the package-level singleton that modules register into.
var globalRegistry = NewRegistry()

// Register adds a handler to the global registry.
// Module init() functions call this to self-register.
func Register(typ core.TxType, h Handler) {
	globalRegistry.Register(typ, h)
}

// RegisterPayable adds a payable handler to the global registry.
func RegisterPayable(typ core.TxType, h Handler) {
	globalRegistry.RegisterPayable(typ, h)
}

// DefaultRegistry returns the registry modules self-register into.
func DefaultRegistry() *Registry { return globalRegistry }
