// Package algfetch is an algorithm-provider registry and dispatch core.
//
// Callers ask for an algorithm by name (or numeric id) plus a property query
// and get back a reference-counted Method Object supplied by a registered
// Provider, or by the legacy registry when no provider matches. The method is
// then driven through a per-use operation context. algfetch never computes
// cryptography itself; it locates, owns and invokes the code that does.
//
// Components:
//   - Registry: ordered set of Providers. Registration order is search order.
//   - NameMap: case-insensitive names and aliases to numeric ids.
//   - Library: the fetch engine. Holds the weak method store, an optional
//     resolution cache and the default property query.
//   - Method[B]: refcounted handle. Aliases Digest, Cipher, MAC, KDF, Rand,
//     KeyMgmt, KeyExch, Signature, AsymCipher.
//   - Contexts: DigestCtx, CipherCtx, ... with a shared lifecycle
//     (Uninitialized, Initialized, Active, Finalized, Freed).
//
// Typical use:
//
//	md, err := lib.FetchDigest("SHA2-256", "fips=no")
//	if err != nil { ... }
//	defer md.Release()
//
//	ctx, _ := algfetch.NewDigestCtx(md)
//	defer ctx.Free()
//	_ = ctx.Init(nil)
//	_ = ctx.Update(data)
//	sum, _ := ctx.Final()
//
// Resolution cache keys:
//
//	res:<ns>:<op>:<id>:<hash>  - winning implementation for a query
//	op:<ns>:<op>               - generation per operation kind
package algfetch
