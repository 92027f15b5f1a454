package remote

import (
	"sync"
	"sync/atomic"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region proxy
// Proxy is a controller that forwards to a replaceable delegate. Replacements are
// queued by transport goroutines and installed by the render loop in Poll, so a
// swap takes effect from the next evaluation and never blocks a frame.
type Proxy struct {
	name    string
	require param.Kind
	current atomic.Pointer[slot]
	pending chan controller.Controller
	offerMu sync.Mutex
	swaps   atomic.Int64
}

type slot struct{ c controller.Controller }

func newProxy(name string, initial controller.Controller, require param.Kind) *Proxy {
	p := &Proxy{
		name:    name,
		require: require,
		pending: make(chan controller.Controller, 1),
	}
	p.current.Store(&slot{c: initial})
	return p
}

// Name returns the remote name of the proxy.
func (p *Proxy) Name() string { return p.name }

// Require returns the kind every delegate must return.
func (p *Proxy) Require() param.Kind { return p.require }

// Current returns the delegate in use.
func (p *Proxy) Current() controller.Controller { return p.current.Load().c }

// Swaps returns how many replacements have been installed.
func (p *Proxy) Swaps() int64 { return p.swaps.Load() }

// offer queues c, replacing any replacement still waiting.
func (p *Proxy) offer(c controller.Controller) {
	p.offerMu.Lock()
	defer p.offerMu.Unlock()
	for {
		select {
		case p.pending <- c:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// Poll installs the newest queued replacement, if any, without blocking.
func (p *Proxy) Poll() {
	select {
	case c := <-p.pending:
		p.current.Store(&slot{c: c})
		p.swaps.Add(1)
	default:
	}
}

// ReturnKind, TemporalKind and Cadence mirror the current delegate.
func (p *Proxy) ReturnKind() param.Kind { return p.Current().ReturnKind() }
func (p *Proxy) TemporalKind() controller.TemporalKind { return p.Current().TemporalKind() }
func (p *Proxy) Cadence() controller.Cadence { return p.Current().Cadence() }

// EvalActive installs any queued replacement, then evaluates it.
func (p *Proxy) EvalActive(t controller.Temporal) (param.Value, error) {
	p.Poll()
	return p.Current().EvalActive(t)
}

func (p *Proxy) EvalIdle(t controller.Temporal) (param.Value, error) {
	p.Poll()
	return p.Current().EvalIdle(t)
}

func (p *Proxy) Describe() string { return controller.Describe(p.Current()) }

// #endregion proxy
