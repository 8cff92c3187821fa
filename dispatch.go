package algfetch

import (
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/algfetch/param"
)

// FuncID names a dispatch slot.
type FuncID int

// Slots shared by every kind.
const (
	FuncNewCtx FuncID = iota + 1
	FuncFreeCtx
	FuncDupCtx
	FuncGetParams
	FuncSetParams
	FuncGetCtxParams
	FuncSetCtxParams
	FuncGettableParams
	FuncGettableCtxParams
	FuncSettableCtxParams
	FuncTeardown
)

// Digest slots.
const (
	FuncDigestInit FuncID = 100 + iota
	FuncDigestUpdate
	FuncDigestFinal
)

// Cipher slots.
const (
	FuncCipherEncryptInit FuncID = 200 + iota
	FuncCipherDecryptInit
	FuncCipherUpdate
	FuncCipherFinal
)

// MAC slots.
const (
	FuncMACInit FuncID = 300 + iota
	FuncMACUpdate
	FuncMACFinal
)

// KDF slots.
const (
	FuncKDFReset FuncID = 400 + iota
	FuncKDFDerive
)

// RAND slots.
const (
	FuncRandInstantiate FuncID = 500 + iota
	FuncRandUninstantiate
	FuncRandGenerate
	FuncRandReseed
)

// Key management slots.
const (
	FuncKeyNew FuncID = 600 + iota
	FuncKeyFree
	FuncKeyGenInit
	FuncKeyGenSetParams
	FuncKeyGen
	FuncKeyGenCleanup
	FuncKeyHas
	FuncKeyValidate
	FuncKeyMatch
	FuncKeyImport
	FuncKeyExport
	FuncKeyGetParams
)

// Key exchange slots.
const (
	FuncExchInit FuncID = 700 + iota
	FuncExchSetPeer
	FuncExchDerive
)

// Signature slots.
const (
	FuncSignInit FuncID = 800 + iota
	FuncSign
	FuncVerifyInit
	FuncVerify
	FuncVerifyRecoverInit
	FuncVerifyRecover
	FuncDigestSignInit
	FuncDigestSignUpdate
	FuncDigestSignFinal
	FuncDigestVerifyInit
	FuncDigestVerifyUpdate
	FuncDigestVerifyFinal
)

// Asymmetric cipher slots.
const (
	FuncAsymEncryptInit FuncID = 900 + iota
	FuncAsymEncrypt
	FuncAsymDecryptInit
	FuncAsymDecrypt
)

func (id FuncID) String() string { return fmt.Sprintf("func(%d)", int(id)) }

// Slot function shapes. These are aliases so plain function literals can be
// placed in a Dispatch without conversion.
type (
	NewCtxFunc       = func() (any, error)
	FreeCtxFunc      = func(ctx any)
	DupCtxFunc       = func(ctx any) (any, error)
	GetParamsFunc    = func(ps param.Params) int
	SetParamsFunc    = func(ps param.Params) int
	CtxParamsFunc    = func(ctx any, ps param.Params) int
	ParamListFunc    = func() param.Descriptors
	TeardownFunc     = func()
	InitFunc         = func(ctx any, ps param.Params) error
	UpdateFunc       = func(ctx any, data []byte) error
	FinalFunc        = func(ctx any) ([]byte, error)
	CipherInitFunc   = func(ctx any, key, iv []byte, ps param.Params) error
	CipherUpdateFunc = func(ctx any, in []byte) ([]byte, error)
	MACInitFunc      = func(ctx any, key []byte, ps param.Params) error
	KDFResetFunc     = func(ctx any)
	KDFDeriveFunc    = func(ctx any, keylen int, ps param.Params) ([]byte, error)

	RandInstantiateFunc   = func(ctx any, strength uint, predictionResistance bool, personalization []byte, ps param.Params) error
	RandUninstantiateFunc = func(ctx any) error
	RandGenerateFunc      = func(ctx any, out []byte, strength uint, predictionResistance bool, addin []byte) error
	RandReseedFunc        = func(ctx any, predictionResistance bool, entropy, addin []byte) error

	KeyNewFunc       = func() (any, error)
	KeyFreeFunc      = func(key any)
	KeyGenInitFunc   = func(selection int, ps param.Params) (any, error)
	KeyGenFunc       = func(genctx any) (any, error)
	KeyHasFunc       = func(key any, selection int) bool
	KeyValidateFunc  = func(key any, selection int) error
	KeyMatchFunc     = func(a, b any, selection int) bool
	KeyImportFunc    = func(key any, selection int, ps param.Params) error
	KeyExportFunc    = func(key any, selection int) (param.Params, error)
	KeyGetParamsFunc = func(key any, ps param.Params) int

	// KeyInitFunc is the shape of exchange, signature and asymmetric cipher
	// init slots: the provider's key data plus parameters.
	KeyInitFunc        = func(ctx any, key any, ps param.Params) error
	SetPeerFunc        = func(ctx any, peer any) error
	DeriveFunc         = func(ctx any) ([]byte, error)
	TransformFunc      = func(ctx any, in []byte) ([]byte, error)
	VerifyFunc         = func(ctx any, sig, tbs []byte) (bool, error)
	DigestSignInitFunc = func(ctx any, digest string, key any, ps param.Params) error
	VerifyFinalFunc    = func(ctx any, sig []byte) (bool, error)
)

// DispatchEntry binds one slot.
type DispatchEntry struct {
	ID FuncID
	Fn any
}

// Dispatch is the ordered slot list a provider hands out per algorithm.
type Dispatch []DispatchEntry

// Entry is shorthand for building a Dispatch.
func Entry(id FuncID, fn any) DispatchEntry { return DispatchEntry{ID: id, Fn: fn} }

// slots indexes a Dispatch. The first entry for an id wins; nil functions are
// treated as absent.
type slots map[FuncID]any

func (d Dispatch) index() slots {
	out := make(slots, len(d))
	for _, e := range d {
		if _, seen := out[e.ID]; seen {
			continue
		}
		v := reflect.ValueOf(e.Fn)
		if !v.IsValid() || (v.Kind() == reflect.Func && v.IsNil()) {
			continue
		}
		out[e.ID] = e.Fn
	}
	return out
}

// bind copies slot id into dst. An absent slot leaves dst nil unless
// required; a slot of the wrong shape is always an error.
func bind[F any](s slots, id FuncID, required bool, dst *F) error {
	fn, ok := s[id]
	if !ok {
		if required {
			return fmt.Errorf("%w: required slot %d missing", ErrInvalidDispatch, int(id))
		}
		return nil
	}
	f, ok := fn.(F)
	if !ok {
		var want F
		return fmt.Errorf("%w: slot %d holds %T, want %T", ErrInvalidDispatch, int(id), fn, want)
	}
	*dst = f
	return nil
}

// binder accumulates the first bind error so a kind's build function can
// list its slots without checking each one.
type binder struct {
	s   slots
	err error
}

func bindSlot[F any](b *binder, id FuncID, required bool, dst *F) {
	if b.err != nil {
		return
	}
	b.err = bind(b.s, id, required, dst)
}

// requireOne fails unless at least one of the given slots was bound.
func (b *binder) requireOne(what string, present ...bool) {
	if b.err != nil {
		return
	}
	for _, ok := range present {
		if ok {
			return
		}
	}
	b.err = fmt.Errorf("%w: no %s slots", ErrInvalidDispatch, what)
}
