package builtin

import (
	"errors"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

type exchState struct {
	self *keyData
	peer *keyData
}

func x25519Dispatch() algfetch.Dispatch {
	return algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncNewCtx, func() (any, error) { return &exchState{}, nil }),
		algfetch.Entry(algfetch.FuncFreeCtx, func(ctx any) { *ctx.(*exchState) = exchState{} }),
		algfetch.Entry(algfetch.FuncDupCtx, func(ctx any) (any, error) {
			cp := *ctx.(*exchState)
			return &cp, nil
		}),
		algfetch.Entry(algfetch.FuncExchInit, func(ctx any, key any, _ param.Params) error {
			k, err := data(key, "X25519")
			if err != nil {
				return err
			}
			if k.xPriv == nil {
				return errors.New("builtin: X25519 exchange needs a private key")
			}
			ctx.(*exchState).self = k
			return nil
		}),
		algfetch.Entry(algfetch.FuncExchSetPeer, func(ctx any, peer any) error {
			k, err := data(peer, "X25519")
			if err != nil {
				return err
			}
			if k.xPub == nil {
				return errors.New("builtin: X25519 peer has no public key")
			}
			ctx.(*exchState).peer = k
			return nil
		}),
		algfetch.Entry(algfetch.FuncExchDerive, func(ctx any) ([]byte, error) {
			s := ctx.(*exchState)
			if s.peer == nil {
				return nil, errors.New("builtin: X25519 peer not set")
			}
			return s.self.xPriv.ECDH(s.peer.xPub)
		}),
	}
}
