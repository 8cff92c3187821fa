package algfetch

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/algfetch/param"
)

// Key selection bits for import, export, has, validate and match.
const (
	SelectPrivateKey = 1 << iota
	SelectPublicKey
	SelectDomainParameters
	SelectOther

	SelectKeyPair = SelectPrivateKey | SelectPublicKey
	SelectAll     = SelectKeyPair | SelectDomainParameters | SelectOther
)

type keymgmtBackend interface {
	backend
	keyNew() (any, error)
	keyFree(key any)
	genInit(selection int, ps param.Params) (any, error)
	gen(genctx any) (any, error)
	has(key any, selection int) bool
	validate(key any, selection int) error
	match(a, b any, selection int) (bool, error)
	importKey(key any, selection int, ps param.Params) error
	exportKey(key any, selection int) (param.Params, error)
	keyParams(key any, ps param.Params) ParamResult
}

// KeyMgmtKind selects key managers in Fetch and DoAll.
var KeyMgmtKind = &Kind[keymgmtBackend]{op: OpKeyMgmt, build: buildKeyMgmt}

// providerKeyMgmt has no general-purpose context. Its context state is the
// key generation context created by gen_init, so the shared newctx and
// freectx slots are replaced by nil and gen_cleanup.
type providerKeyMgmt struct {
	providerBase
	newFn       KeyNewFunc
	freeFn      KeyFreeFunc
	genInitFn   KeyGenInitFunc
	genFn       KeyGenFunc
	cleanupFn   FreeCtxFunc
	hasFn       KeyHasFunc
	validateFn  KeyValidateFunc
	matchFn     KeyMatchFunc
	importFn    KeyImportFunc
	exportFn    KeyExportFunc
	keyParamsFn KeyGetParamsFunc
}

func buildKeyMgmt(d Dispatch) (keymgmtBackend, error) {
	b := &binder{s: d.index()}
	p := &providerKeyMgmt{providerBase: bindBase(b, false)}
	bindSlot(b, FuncKeyNew, false, &p.newFn)
	bindSlot(b, FuncKeyFree, true, &p.freeFn)
	bindSlot(b, FuncKeyGenInit, false, &p.genInitFn)
	bindSlot(b, FuncKeyGen, p.genInitFn != nil, &p.genFn)
	bindSlot(b, FuncKeyGenCleanup, false, &p.cleanupFn)
	if p.setCtxFn == nil {
		bindSlot(b, FuncKeyGenSetParams, false, &p.setCtxFn)
	}
	bindSlot(b, FuncKeyHas, true, &p.hasFn)
	bindSlot(b, FuncKeyValidate, false, &p.validateFn)
	bindSlot(b, FuncKeyMatch, false, &p.matchFn)
	bindSlot(b, FuncKeyImport, false, &p.importFn)
	bindSlot(b, FuncKeyExport, false, &p.exportFn)
	bindSlot(b, FuncKeyGetParams, false, &p.keyParamsFn)
	b.requireOne("key creation", p.newFn != nil, p.genFn != nil)
	if b.err != nil {
		return nil, b.err
	}
	if p.importFn != nil && p.newFn == nil {
		return nil, fmt.Errorf("%w: key import without key new", ErrInvalidDispatch)
	}
	return p, nil
}

func (p *providerKeyMgmt) newCtx() (any, error) { return nil, nil }

func (p *providerKeyMgmt) freeCtx(ctx any) {
	if ctx != nil && p.cleanupFn != nil {
		p.cleanupFn(ctx)
	}
}

func (p *providerKeyMgmt) dupCtx(any) (any, error) { return nil, ErrUnsupported }

func (p *providerKeyMgmt) keyNew() (any, error) {
	if p.newFn == nil {
		return nil, ErrUnsupported
	}
	return p.newFn()
}

func (p *providerKeyMgmt) keyFree(key any) { p.freeFn(key) }

func (p *providerKeyMgmt) genInit(selection int, ps param.Params) (any, error) {
	if p.genInitFn == nil {
		return nil, ErrUnsupported
	}
	return p.genInitFn(selection, ps)
}

func (p *providerKeyMgmt) gen(genctx any) (any, error) {
	if p.genFn == nil {
		return nil, ErrUnsupported
	}
	return p.genFn(genctx)
}

func (p *providerKeyMgmt) has(key any, selection int) bool { return p.hasFn(key, selection) }

func (p *providerKeyMgmt) validate(key any, selection int) error {
	if p.validateFn == nil {
		return ErrUnsupported
	}
	return p.validateFn(key, selection)
}

func (p *providerKeyMgmt) match(a, b any, selection int) (bool, error) {
	if p.matchFn == nil {
		return false, ErrUnsupported
	}
	return p.matchFn(a, b, selection), nil
}

func (p *providerKeyMgmt) importKey(key any, selection int, ps param.Params) error {
	if p.importFn == nil {
		return ErrUnsupported
	}
	return p.importFn(key, selection, ps)
}

func (p *providerKeyMgmt) exportKey(key any, selection int) (param.Params, error) {
	if p.exportFn == nil {
		return nil, ErrUnsupported
	}
	return p.exportFn(key, selection)
}

func (p *providerKeyMgmt) keyParams(key any, ps param.Params) ParamResult {
	if p.keyParamsFn == nil {
		return unsupported()
	}
	return backendResult(p.keyParamsFn(key, ps))
}

// Key is provider key material owned by a key manager. It holds a reference
// to its KeyMgmt until freed. Operations that take a Key must come from the
// same provider, and the Key must outlive any context initialized with it.
type Key struct {
	km   *KeyMgmt
	data any
}

func newKey(km *KeyMgmt, data any) *Key {
	km.Acquire()
	return &Key{km: km, data: data}
}

// NewKey creates an empty key, typically to be filled by import.
func NewKey(km *KeyMgmt) (*Key, error) {
	if km == nil {
		return nil, errors.New("algfetch: nil key manager")
	}
	data, err := km.impl.keyNew()
	if err != nil {
		return nil, keyErr(km, "new", err)
	}
	return newKey(km, data), nil
}

// ImportKey creates a key from the selected components in ps.
func ImportKey(km *KeyMgmt, selection int, ps param.Params) (*Key, error) {
	k, err := NewKey(km)
	if err != nil {
		return nil, err
	}
	if err := km.impl.importKey(k.data, selection, ps); err != nil {
		k.Free()
		return nil, keyErr(km, "import", err)
	}
	return k, nil
}

func keyErr(km *KeyMgmt, call string, err error) error {
	if errors.Is(err, ErrUnsupported) {
		return fmt.Errorf("%w: %s %s", ErrUnsupported, OpKeyMgmt, call)
	}
	return callErr(OpKeyMgmt, call, km.ProviderName(), err)
}

func (k *Key) live(call string) error {
	if k.km == nil {
		return &StateError{Op: OpKeyMgmt, Call: call, State: Freed}
	}
	return nil
}

// KeyMgmt returns the key's manager, or nil once freed.
func (k *Key) KeyMgmt() *KeyMgmt { return k.km }

// Has reports whether the key holds every selected component.
func (k *Key) Has(selection int) bool {
	if k.live("has") != nil {
		return false
	}
	return k.km.impl.has(k.data, selection)
}

func (k *Key) Validate(selection int) error {
	if err := k.live("validate"); err != nil {
		return err
	}
	if err := k.km.impl.validate(k.data, selection); err != nil {
		return keyErr(k.km, "validate", err)
	}
	return nil
}

// Match compares the selected components of two keys. Keys from different
// providers never match and yield ErrKeyMismatch.
func (k *Key) Match(o *Key, selection int) (bool, error) {
	if err := k.live("match"); err != nil {
		return false, err
	}
	if err := sameProvider(k.km, o); err != nil {
		return false, err
	}
	ok, err := k.km.impl.match(k.data, o.data, selection)
	if err != nil {
		return false, keyErr(k.km, "match", err)
	}
	return ok, nil
}

// Export returns the selected components as parameters.
func (k *Key) Export(selection int) (param.Params, error) {
	if err := k.live("export"); err != nil {
		return nil, err
	}
	ps, err := k.km.impl.exportKey(k.data, selection)
	if err != nil {
		return nil, keyErr(k.km, "export", err)
	}
	return ps, nil
}

// GetParams reads key attributes such as bits.
func (k *Key) GetParams(ps param.Params) (ParamResult, error) {
	if err := k.live("get_params"); err != nil {
		return ParamResult{}, err
	}
	return k.km.impl.keyParams(k.data, ps), nil
}

// Free releases the key data and its manager. Calling it again is a no-op.
func (k *Key) Free() {
	if k.km == nil {
		return
	}
	k.km.impl.keyFree(k.data)
	k.km.Release()
	k.km = nil
	k.data = nil
}

// KeyGenCtx generates keys: Init with a selection, then Generate any number
// of times.
type KeyGenCtx struct {
	opCtx[keymgmtBackend]
}

func NewKeyGenCtx(km *KeyMgmt) (*KeyGenCtx, error) {
	o, err := newOpCtx(km)
	if err != nil {
		return nil, err
	}
	return &KeyGenCtx{o}, nil
}

func (c *KeyGenCtx) Init(selection int, ps param.Params) error {
	return c.begin("gen_init", func(s any) error {
		g, err := c.m.impl.genInit(selection, ps)
		if err != nil {
			return err
		}
		c.m.impl.freeCtx(s)
		c.state = g
		return nil
	})
}

func (c *KeyGenCtx) Generate() (*Key, error) {
	return operate(&c.opCtx, "gen", func(s any) (*Key, error) {
		data, err := c.m.impl.gen(s)
		if err != nil {
			return nil, err
		}
		return newKey(c.m, data), nil
	})
}

// GenerateKey is a one-shot convenience: new context, init, generate, free.
func GenerateKey(km *KeyMgmt, selection int, ps param.Params) (*Key, error) {
	c, err := NewKeyGenCtx(km)
	if err != nil {
		return nil, err
	}
	defer c.Free()
	if err := c.Init(selection, ps); err != nil {
		return nil, err
	}
	return c.Generate()
}
