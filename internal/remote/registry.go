package remote

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region swap-event
// SwapEvent records one replacement request and its outcome.
type SwapEvent struct {
	Name     string
	Command  string
	Origin   string
	Accepted bool
	Reason   string
	At       time.Time
}

// #endregion swap-event

// #region registry
// reserved words of the line protocol cannot be used as names.
var reserved = map[string]bool{"quit": true, "close": true, "exit": true, "help": true, "go": true}

// Registry maps remote names to proxies and tracks which connections may replace them.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	connected map[string]struct{}
	observers []func(SwapEvent)
}

type entry struct {
	proxy    *Proxy
	handlers map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:   make(map[string]*entry),
		connected: make(map[string]struct{}),
	}
}

// Register creates the proxy for name. When initial is nil a float constant of
// 1.0 during trials and 0.0 between them is used. require is the kind every
// replacement must return; KindInvalid takes the initial controller's kind.
func (r *Registry) Register(name string, initial controller.Controller, require param.Kind) (*Proxy, error) {
	if name == "" || strings.ContainsAny(name, " \t\r\n=") {
		return nil, fmt.Errorf("register %q: name must be non-empty without spaces or '='", name)
	}
	if reserved[strings.ToLower(name)] {
		return nil, fmt.Errorf("register %q: reserved word", name)
	}
	if initial == nil {
		c, err := controller.NewConstant(param.Float(1.0), param.Float(0.0), controller.Options{})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		initial = c
	}
	if require == param.KindInvalid {
		require = initial.ReturnKind()
	}
	if !require.Accepts(initial.ReturnKind()) {
		return nil, fmt.Errorf("register %s: initial controller returns %s, want %s", name, initial.ReturnKind(), require)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[name]; dup {
		return nil, fmt.Errorf("register %s: already registered", name)
	}
	e := &entry{proxy: newProxy(name, initial, require), handlers: make(map[string]struct{})}
	for origin := range r.connected {
		e.handlers[origin] = struct{}{}
	}
	r.entries[name] = e
	return e.proxy, nil
}

// Unregister forgets name. The proxy keeps its last delegate.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Lookup returns the proxy registered under name.
func (r *Registry) Lookup(name string) (*Proxy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.proxy, true
}

// Names lists registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// #endregion registry

// #region handlers
// Attach records a connected handler; it may replace every registered name.
func (r *Registry) Attach(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected[origin] = struct{}{}
	for _, e := range r.entries {
		e.handlers[origin] = struct{}{}
	}
}

// Detach forgets a handler when its connection ends.
func (r *Registry) Detach(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connected, origin)
	for _, e := range r.entries {
		delete(e.handlers, origin)
	}
}

// Handlers lists the connected handlers that may replace name.
func (r *Registry) Handlers(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.handlers))
	for origin := range e.handlers {
		out = append(out, origin)
	}
	sort.Strings(out)
	return out
}

// OnSwap registers an observer called after every replacement request.
// Observers run on the submitting goroutine.
func (r *Registry) OnSwap(fn func(SwapEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// #endregion handlers

// #region submit
// Submit parses text, builds the controller and queues it on name's proxy.
// Malformed or mistyped commands return a *ProtocolError and leave the proxy untouched.
func (r *Registry) Submit(name, text, origin string) error {
	p, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("submit %s: %w", name, ErrUnknownName)
	}
	ev := SwapEvent{Name: name, Command: text, Origin: origin, At: time.Now().UTC()}

	cmd, err := ParseCommand(text)
	if err == nil {
		var c controller.Controller
		if c, err = Build(cmd, p.Require()); err == nil {
			p.offer(c)
		}
	}
	if err != nil {
		ev.Reason = err.Error()
		r.notify(ev)
		return &ProtocolError{Name: name, Text: text, Err: err}
	}
	ev.Accepted = true
	r.notify(ev)
	return nil
}

func (r *Registry) notify(ev SwapEvent) {
	r.mu.RLock()
	observers := make([]func(SwapEvent), len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()
	for _, fn := range observers {
		fn(ev)
	}
}

// #endregion submit
