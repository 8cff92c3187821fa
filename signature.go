package algfetch

import "github.com/unkn0wn-root/algfetch/param"

type signatureBackend interface {
	backend
	signInit(ctx, key any, ps param.Params) error
	sign(ctx any, tbs []byte) ([]byte, error)
	verifyInit(ctx, key any, ps param.Params) error
	verify(ctx any, sig, tbs []byte) (bool, error)
	verifyRecoverInit(ctx, key any, ps param.Params) error
	verifyRecover(ctx any, sig []byte) ([]byte, error)
	digestSignInit(ctx any, digest string, key any, ps param.Params) error
	digestSignUpdate(ctx any, data []byte) error
	digestSignFinal(ctx any) ([]byte, error)
	digestVerifyInit(ctx any, digest string, key any, ps param.Params) error
	digestVerifyUpdate(ctx any, data []byte) error
	digestVerifyFinal(ctx any, sig []byte) (bool, error)
}

// SignatureKind selects signature algorithms in Fetch and DoAll.
var SignatureKind = &Kind[signatureBackend]{op: OpSignature, build: buildSignature}

type providerSignature struct {
	providerBase
	signInitFn    KeyInitFunc
	signFn        TransformFunc
	verifyInitFn  KeyInitFunc
	verifyFn      VerifyFunc
	recoverInitFn KeyInitFunc
	recoverFn     TransformFunc
	dsInitFn      DigestSignInitFunc
	dsUpdateFn    UpdateFunc
	dsFinalFn     FinalFunc
	dvInitFn      DigestSignInitFunc
	dvUpdateFn    UpdateFunc
	dvFinalFn     VerifyFinalFunc
}

func buildSignature(d Dispatch) (signatureBackend, error) {
	b := &binder{s: d.index()}
	p := &providerSignature{providerBase: bindBase(b, true)}
	bindSlot(b, FuncSignInit, false, &p.signInitFn)
	bindSlot(b, FuncSign, p.signInitFn != nil, &p.signFn)
	bindSlot(b, FuncVerifyInit, false, &p.verifyInitFn)
	bindSlot(b, FuncVerify, p.verifyInitFn != nil, &p.verifyFn)
	bindSlot(b, FuncVerifyRecoverInit, false, &p.recoverInitFn)
	bindSlot(b, FuncVerifyRecover, p.recoverInitFn != nil, &p.recoverFn)
	bindSlot(b, FuncDigestSignInit, false, &p.dsInitFn)
	bindSlot(b, FuncDigestSignUpdate, p.dsInitFn != nil, &p.dsUpdateFn)
	bindSlot(b, FuncDigestSignFinal, p.dsInitFn != nil, &p.dsFinalFn)
	bindSlot(b, FuncDigestVerifyInit, false, &p.dvInitFn)
	bindSlot(b, FuncDigestVerifyUpdate, p.dvInitFn != nil, &p.dvUpdateFn)
	bindSlot(b, FuncDigestVerifyFinal, p.dvInitFn != nil, &p.dvFinalFn)
	b.requireOne("signature",
		p.signInitFn != nil, p.verifyInitFn != nil, p.recoverInitFn != nil,
		p.dsInitFn != nil, p.dvInitFn != nil)
	if b.err != nil {
		return nil, b.err
	}
	return p, nil
}

func keyInit(fn KeyInitFunc, ctx, key any, ps param.Params) error {
	if fn == nil {
		return ErrUnsupported
	}
	return fn(ctx, key, ps)
}

func digestInit(fn DigestSignInitFunc, ctx any, digest string, key any, ps param.Params) error {
	if fn == nil {
		return ErrUnsupported
	}
	return fn(ctx, digest, key, ps)
}

func (p *providerSignature) signInit(ctx, key any, ps param.Params) error {
	return keyInit(p.signInitFn, ctx, key, ps)
}

func (p *providerSignature) verifyInit(ctx, key any, ps param.Params) error {
	return keyInit(p.verifyInitFn, ctx, key, ps)
}

func (p *providerSignature) verifyRecoverInit(ctx, key any, ps param.Params) error {
	return keyInit(p.recoverInitFn, ctx, key, ps)
}

func (p *providerSignature) digestSignInit(ctx any, digest string, key any, ps param.Params) error {
	return digestInit(p.dsInitFn, ctx, digest, key, ps)
}

func (p *providerSignature) digestVerifyInit(ctx any, digest string, key any, ps param.Params) error {
	return digestInit(p.dvInitFn, ctx, digest, key, ps)
}

// The remaining calls are only reachable after the matching init succeeded,
// and each init makes its companions required.
func (p *providerSignature) sign(ctx any, tbs []byte) ([]byte, error) {
	return p.signFn(ctx, tbs)
}

func (p *providerSignature) verify(ctx any, sig, tbs []byte) (bool, error) {
	return p.verifyFn(ctx, sig, tbs)
}

func (p *providerSignature) verifyRecover(ctx any, sig []byte) ([]byte, error) {
	return p.recoverFn(ctx, sig)
}

func (p *providerSignature) digestSignUpdate(ctx any, data []byte) error {
	return p.dsUpdateFn(ctx, data)
}

func (p *providerSignature) digestSignFinal(ctx any) ([]byte, error) {
	return p.dsFinalFn(ctx)
}

func (p *providerSignature) digestVerifyUpdate(ctx any, data []byte) error {
	return p.dvUpdateFn(ctx, data)
}

func (p *providerSignature) digestVerifyFinal(ctx any, sig []byte) (bool, error) {
	return p.dvFinalFn(ctx, sig)
}

type purpose uint8

const (
	purposeNone purpose = iota
	purposeSign
	purposeVerify
	purposeVerifyRecover
	purposeDigestSign
	purposeDigestVerify
)

// SignatureCtx signs or verifies. Each init fixes the context's purpose;
// calls for a different purpose are state errors.
type SignatureCtx struct {
	opCtx[signatureBackend]
	purpose purpose
}

func NewSignatureCtx(s *Signature) (*SignatureCtx, error) {
	o, err := newOpCtx(s)
	if err != nil {
		return nil, err
	}
	return &SignatureCtx{opCtx: o}, nil
}

func (c *SignatureCtx) start(call string, key *Key, p purpose, fn func(any) error) error {
	if err := c.require(call, usable...); err != nil {
		return err
	}
	if err := sameProvider(c.m, key); err != nil {
		return err
	}
	if err := c.begin(call, fn); err != nil {
		c.purpose = purposeNone
		return err
	}
	c.purpose = p
	return nil
}

func (c *SignatureCtx) check(call string, p purpose) error {
	if c.st != Freed && c.st != Uninitialized && c.purpose != p {
		return &StateError{Op: c.op, Call: call, State: c.st}
	}
	return nil
}

func (c *SignatureCtx) SignInit(key *Key, ps param.Params) error {
	return c.start("sign_init", key, purposeSign, func(s any) error { return c.m.impl.signInit(s, key.data, ps) })
}

// Sign signs tbs, which is normally a digest computed by the caller.
func (c *SignatureCtx) Sign(tbs []byte) ([]byte, error) {
	if err := c.check("sign", purposeSign); err != nil {
		return nil, err
	}
	return operate(&c.opCtx, "sign", func(s any) ([]byte, error) { return c.m.impl.sign(s, tbs) })
}

func (c *SignatureCtx) VerifyInit(key *Key, ps param.Params) error {
	return c.start("verify_init", key, purposeVerify, func(s any) error { return c.m.impl.verifyInit(s, key.data, ps) })
}

// Verify reports whether sig is valid for tbs. A false result with a nil
// error is a clean mismatch.
func (c *SignatureCtx) Verify(sig, tbs []byte) (bool, error) {
	if err := c.check("verify", purposeVerify); err != nil {
		return false, err
	}
	return operate(&c.opCtx, "verify", func(s any) (bool, error) { return c.m.impl.verify(s, sig, tbs) })
}

func (c *SignatureCtx) VerifyRecoverInit(key *Key, ps param.Params) error {
	return c.start("verify_recover_init", key, purposeVerifyRecover, func(s any) error {
		return c.m.impl.verifyRecoverInit(s, key.data, ps)
	})
}

// VerifyRecover returns the data recovered from sig.
func (c *SignatureCtx) VerifyRecover(sig []byte) ([]byte, error) {
	if err := c.check("verify_recover", purposeVerifyRecover); err != nil {
		return nil, err
	}
	return operate(&c.opCtx, "verify_recover", func(s any) ([]byte, error) { return c.m.impl.verifyRecover(s, sig) })
}

// DigestSignInit starts a streaming sign over data hashed with digest. An
// empty digest lets the implementation choose.
func (c *SignatureCtx) DigestSignInit(digest string, key *Key, ps param.Params) error {
	return c.start("digest_sign_init", key, purposeDigestSign, func(s any) error {
		return c.m.impl.digestSignInit(s, digest, key.data, ps)
	})
}

func (c *SignatureCtx) DigestSignUpdate(data []byte) error {
	if err := c.check("digest_sign_update", purposeDigestSign); err != nil {
		return err
	}
	return c.stream("digest_sign_update", func(s any) error { return c.m.impl.digestSignUpdate(s, data) })
}

func (c *SignatureCtx) DigestSignFinal() ([]byte, error) {
	if err := c.check("digest_sign_final", purposeDigestSign); err != nil {
		return nil, err
	}
	return finish(&c.opCtx, "digest_sign_final", func(s any) ([]byte, error) { return c.m.impl.digestSignFinal(s) })
}

func (c *SignatureCtx) DigestVerifyInit(digest string, key *Key, ps param.Params) error {
	return c.start("digest_verify_init", key, purposeDigestVerify, func(s any) error {
		return c.m.impl.digestVerifyInit(s, digest, key.data, ps)
	})
}

func (c *SignatureCtx) DigestVerifyUpdate(data []byte) error {
	if err := c.check("digest_verify_update", purposeDigestVerify); err != nil {
		return err
	}
	return c.stream("digest_verify_update", func(s any) error { return c.m.impl.digestVerifyUpdate(s, data) })
}

func (c *SignatureCtx) DigestVerifyFinal(sig []byte) (bool, error) {
	if err := c.check("digest_verify_final", purposeDigestVerify); err != nil {
		return false, err
	}
	return finish(&c.opCtx, "digest_verify_final", func(s any) (bool, error) { return c.m.impl.digestVerifyFinal(s, sig) })
}

func (c *SignatureCtx) Dup() (*SignatureCtx, error) {
	d, err := c.dup()
	if err != nil {
		return nil, err
	}
	return &SignatureCtx{opCtx: d, purpose: c.purpose}, nil
}
