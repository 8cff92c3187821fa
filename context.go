package algfetch

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/algfetch/param"
)

// State is an operation context's lifecycle position.
type State uint8

const (
	Uninitialized State = iota
	Initialized
	Active
	Finalized
	Freed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Active:
		return "active"
	case Finalized:
		return "finalized"
	case Freed:
		return "freed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

var usable = []State{Uninitialized, Initialized, Active, Finalized}

// opCtx is the lifecycle shared by every context kind: a method reference,
// backend state owned by the context, and the current State. Contexts are
// not safe for concurrent use.
type opCtx[B backend] struct {
	m     *Method[B]
	op    Operation
	state any
	st    State
}

func newOpCtx[B backend](m *Method[B]) (opCtx[B], error) {
	if m == nil {
		return opCtx[B]{}, errors.New("algfetch: nil method")
	}
	m.Acquire()
	s, err := m.impl.newCtx()
	if err != nil {
		m.Release()
		return opCtx[B]{}, callErr(m.op, "newctx", m.ProviderName(), err)
	}
	return opCtx[B]{m: m, op: m.op, state: s}, nil
}

func (c *opCtx[B]) require(call string, allowed ...State) error {
	for _, s := range allowed {
		if c.st == s {
			return nil
		}
	}
	return &StateError{Op: c.op, Call: call, State: c.st}
}

func (c *opCtx[B]) fail(call string, err error) error {
	if errors.Is(err, ErrUnsupported) {
		return fmt.Errorf("%w: %s %s", ErrUnsupported, c.op, call)
	}
	return callErr(c.op, call, c.m.ProviderName(), err)
}

// begin runs an init call. On failure the backend state is discarded and
// replaced by a fresh one, leaving the context Uninitialized.
func (c *opCtx[B]) begin(call string, fn func(state any) error) error {
	if err := c.require(call, usable...); err != nil {
		return err
	}
	if c.state == nil {
		s, err := c.m.impl.newCtx()
		if err != nil {
			return c.fail("newctx", err)
		}
		c.state = s
	}
	if err := fn(c.state); err != nil {
		c.discard()
		return c.fail(call, err)
	}
	c.st = Initialized
	return nil
}

func (c *opCtx[B]) discard() {
	c.m.impl.freeCtx(c.state)
	c.state = nil
	if s, err := c.m.impl.newCtx(); err == nil {
		c.state = s
	}
	c.st = Uninitialized
}

// stream runs an update call: valid once initialized, leaves Active.
func (c *opCtx[B]) stream(call string, fn func(state any) error) error {
	if err := c.require(call, Initialized, Active); err != nil {
		return err
	}
	if err := fn(c.state); err != nil {
		return c.fail(call, err)
	}
	c.st = Active
	return nil
}

// finish runs a final call: valid once initialized, leaves Finalized. A
// second final without a new init is a state error.
func finish[B backend, T any](c *opCtx[B], call string, fn func(state any) (T, error)) (T, error) {
	var zero T
	if err := c.require(call, Initialized, Active); err != nil {
		return zero, err
	}
	out, err := fn(c.state)
	if err != nil {
		return zero, c.fail(call, err)
	}
	c.st = Finalized
	return out, nil
}

// operate runs a one-shot call (sign, derive, encrypt, ...): valid from
// Initialized or Finalized so it can be repeated, leaves Finalized.
func operate[B backend, T any](c *opCtx[B], call string, fn func(state any) (T, error)) (T, error) {
	var zero T
	if err := c.require(call, Initialized, Finalized); err != nil {
		return zero, err
	}
	out, err := fn(c.state)
	if err != nil {
		return zero, c.fail(call, err)
	}
	c.st = Finalized
	return out, nil
}

func (c *opCtx[B]) dup() (opCtx[B], error) {
	if err := c.require("dup", usable...); err != nil {
		return opCtx[B]{}, err
	}
	s, err := c.m.impl.dupCtx(c.state)
	if err != nil {
		return opCtx[B]{}, c.fail("dup", err)
	}
	c.m.Acquire()
	return opCtx[B]{m: c.m, op: c.op, state: s, st: c.st}, nil
}

// Free releases the backend state and the method reference. Calling it again
// is a no-op.
func (c *opCtx[B]) Free() {
	if c.st == Freed || c.m == nil {
		return
	}
	c.m.impl.freeCtx(c.state)
	c.m.Release()
	c.m = nil
	c.state = nil
	c.st = Freed
}

func (c *opCtx[B]) State() State { return c.st }

// Method returns the method the context was built from, or nil once freed.
func (c *opCtx[B]) Method() *Method[B] { return c.m }

// GetParams reads per-context parameters.
func (c *opCtx[B]) GetParams(ps param.Params) (ParamResult, error) {
	if err := c.require("get_params", usable...); err != nil {
		return ParamResult{}, err
	}
	return c.m.impl.getCtxParams(c.state, ps), nil
}

// SetParams writes per-context parameters.
func (c *opCtx[B]) SetParams(ps param.Params) (ParamResult, error) {
	if err := c.require("set_params", usable...); err != nil {
		return ParamResult{}, err
	}
	return c.m.impl.setCtxParams(c.state, ps), nil
}

func (c *opCtx[B]) GettableParams() param.Descriptors {
	if c.st == Freed {
		return nil
	}
	return c.m.impl.gettableCtxParams()
}

func (c *opCtx[B]) SettableParams() param.Descriptors {
	if c.st == Freed {
		return nil
	}
	return c.m.impl.settableCtxParams()
}

// sameProvider checks that key material and operation come from one
// provider.
func sameProvider[B backend](m *Method[B], k *Key) error {
	if k == nil || k.km == nil {
		return errors.New("algfetch: nil key")
	}
	if k.km.ProviderName() != m.ProviderName() {
		return fmt.Errorf("%w: key from %q, operation from %q", ErrKeyMismatch, k.km.ProviderName(), m.ProviderName())
	}
	return nil
}
