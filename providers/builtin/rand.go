package builtin

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

const (
	randStrength   = 256
	randMaxRequest = 1 << 16
)

type randState struct {
	src          io.Reader
	instantiated bool
}

func randDispatch() algfetch.Dispatch {
	get := map[string]func(*param.Param) error{
		param.KeyStrength:   func(p *param.Param) error { return p.SetUint(randStrength) },
		param.KeyMaxRequest: func(p *param.Param) error { return p.SetUint(randMaxRequest) },
	}
	return algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncNewCtx, func() (any, error) { return &randState{src: rand.Reader}, nil }),
		algfetch.Entry(algfetch.FuncFreeCtx, func(ctx any) { ctx.(*randState).instantiated = false }),
		algfetch.Entry(algfetch.FuncGetCtxParams, func(_ any, ps param.Params) int { return answer(ps, get) }),
		algfetch.Entry(algfetch.FuncGettableCtxParams, func() param.Descriptors {
			return param.Descriptors{
				{Key: param.KeyStrength, Type: param.UnsignedInteger},
				{Key: param.KeyMaxRequest, Type: param.UnsignedInteger},
			}
		}),
		algfetch.Entry(algfetch.FuncRandInstantiate, func(ctx any, strength uint, _ bool, _ []byte, _ param.Params) error {
			if strength > randStrength {
				return fmt.Errorf("builtin: strength %d above %d", strength, randStrength)
			}
			ctx.(*randState).instantiated = true
			return nil
		}),
		algfetch.Entry(algfetch.FuncRandUninstantiate, func(ctx any) error {
			ctx.(*randState).instantiated = false
			return nil
		}),
		algfetch.Entry(algfetch.FuncRandGenerate, func(ctx any, out []byte, strength uint, _ bool, _ []byte) error {
			s := ctx.(*randState)
			if !s.instantiated {
				return errors.New("builtin: generator not instantiated")
			}
			if strength > randStrength {
				return fmt.Errorf("builtin: strength %d above %d", strength, randStrength)
			}
			if len(out) > randMaxRequest {
				return fmt.Errorf("builtin: request of %d bytes above %d", len(out), randMaxRequest)
			}
			_, err := io.ReadFull(s.src, out)
			return err
		}),
		// The system source reseeds itself; explicit entropy is ignored.
		algfetch.Entry(algfetch.FuncRandReseed, func(any, bool, []byte, []byte) error { return nil }),
	}
}
