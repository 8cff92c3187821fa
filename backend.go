package algfetch

import (
	"fmt"

	"github.com/unkn0wn-root/algfetch/param"
)

// Constants are the fixed sizes an algorithm reports through its
// algorithm-level parameters. Zero means not reported.
type Constants struct {
	Size      int
	BlockSize int
	KeyLen    int
	IVLen     int
}

// backend is the per-kind capability set behind a Method Object. Each kind
// has a provider-backed implementation built from a Dispatch and, for digest
// and cipher, a legacy one.
type backend interface {
	newCtx() (any, error)
	freeCtx(ctx any)
	dupCtx(ctx any) (any, error)
	getParams(ps param.Params) ParamResult
	setParams(ps param.Params) ParamResult
	getCtxParams(ctx any, ps param.Params) ParamResult
	setCtxParams(ctx any, ps param.Params) ParamResult
	gettableParams() param.Descriptors
	gettableCtxParams() param.Descriptors
	settableCtxParams() param.Descriptors
	constants() Constants
	teardown()
}

// providerBase holds the slots every provider-backed kind shares.
type providerBase struct {
	newCtxFn      NewCtxFunc
	freeCtxFn     FreeCtxFunc
	dupCtxFn      DupCtxFunc
	getParamsFn   GetParamsFunc
	setParamsFn   SetParamsFunc
	getCtxFn      CtxParamsFunc
	setCtxFn      CtxParamsFunc
	gettableFn    ParamListFunc
	gettableCtxFn ParamListFunc
	settableCtxFn ParamListFunc
	teardownFn    TeardownFunc
}

// bindBase binds the shared slots. Context kinds require newctx and freectx.
func bindBase(b *binder, withCtx bool) providerBase {
	var p providerBase
	bindSlot(b, FuncNewCtx, withCtx, &p.newCtxFn)
	bindSlot(b, FuncFreeCtx, withCtx, &p.freeCtxFn)
	bindSlot(b, FuncDupCtx, false, &p.dupCtxFn)
	bindSlot(b, FuncGetParams, false, &p.getParamsFn)
	bindSlot(b, FuncSetParams, false, &p.setParamsFn)
	bindSlot(b, FuncGetCtxParams, false, &p.getCtxFn)
	bindSlot(b, FuncSetCtxParams, false, &p.setCtxFn)
	bindSlot(b, FuncGettableParams, false, &p.gettableFn)
	bindSlot(b, FuncGettableCtxParams, false, &p.gettableCtxFn)
	bindSlot(b, FuncSettableCtxParams, false, &p.settableCtxFn)
	bindSlot(b, FuncTeardown, false, &p.teardownFn)
	return p
}

func (p *providerBase) newCtx() (any, error) {
	if p.newCtxFn == nil {
		return nil, ErrUnsupported
	}
	return p.newCtxFn()
}

func (p *providerBase) freeCtx(ctx any) {
	if p.freeCtxFn != nil {
		p.freeCtxFn(ctx)
	}
}

func (p *providerBase) dupCtx(ctx any) (any, error) {
	if p.dupCtxFn == nil {
		return nil, ErrUnsupported
	}
	return p.dupCtxFn(ctx)
}

func (p *providerBase) getParams(ps param.Params) ParamResult {
	if p.getParamsFn == nil {
		return unsupported()
	}
	return backendResult(p.getParamsFn(ps))
}

func (p *providerBase) setParams(ps param.Params) ParamResult {
	if p.setParamsFn == nil {
		return unsupported()
	}
	return backendResult(p.setParamsFn(ps))
}

func (p *providerBase) getCtxParams(ctx any, ps param.Params) ParamResult {
	if p.getCtxFn == nil {
		return unsupported()
	}
	return backendResult(p.getCtxFn(ctx, ps))
}

func (p *providerBase) setCtxParams(ctx any, ps param.Params) ParamResult {
	if p.setCtxFn == nil {
		return unsupported()
	}
	return backendResult(p.setCtxFn(ctx, ps))
}

func (p *providerBase) gettableParams() param.Descriptors    { return list(p.gettableFn) }
func (p *providerBase) gettableCtxParams() param.Descriptors { return list(p.gettableCtxFn) }
func (p *providerBase) settableCtxParams() param.Descriptors { return list(p.settableCtxFn) }

func (p *providerBase) teardown() {
	if p.teardownFn != nil {
		p.teardownFn()
	}
}

// constants asks the algorithm-level get_params for the well-known sizes.
func (p *providerBase) constants() Constants {
	var c Constants
	if p.getParamsFn == nil {
		return c
	}
	ps := param.Params{
		param.Request(param.KeySize, param.UnsignedInteger),
		param.Request(param.KeyBlockSize, param.UnsignedInteger),
		param.Request(param.KeyKeyLen, param.UnsignedInteger),
		param.Request(param.KeyIVLen, param.UnsignedInteger),
	}
	if p.getParamsFn(ps) <= 0 {
		return c
	}
	c.Size = readSize(&ps[0])
	c.BlockSize = readSize(&ps[1])
	c.KeyLen = readSize(&ps[2])
	c.IVLen = readSize(&ps[3])
	return c
}

func readSize(p *param.Param) int {
	if !p.Modified {
		return 0
	}
	v, err := p.Uint()
	if err != nil {
		return 0
	}
	return int(v)
}

func list(fn ParamListFunc) param.Descriptors {
	if fn == nil {
		return nil
	}
	return fn()
}

// legacyBase answers every parameter call with NotProviderBacked.
type legacyBase struct{}

func (legacyBase) getParams(param.Params) ParamResult         { return notProviderBacked() }
func (legacyBase) setParams(param.Params) ParamResult         { return notProviderBacked() }
func (legacyBase) getCtxParams(any, param.Params) ParamResult { return notProviderBacked() }
func (legacyBase) setCtxParams(any, param.Params) ParamResult { return notProviderBacked() }
func (legacyBase) gettableParams() param.Descriptors          { return nil }
func (legacyBase) gettableCtxParams() param.Descriptors       { return nil }
func (legacyBase) settableCtxParams() param.Descriptors       { return nil }
func (legacyBase) teardown()                                  {}

// callErr wraps an implementation error for a context call.
func callErr(op Operation, call, provider string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Call: call, Provider: provider, Err: err}
}

func sizeErr(what string, n int) error {
	return fmt.Errorf("algfetch: invalid %s %d", what, n)
}
