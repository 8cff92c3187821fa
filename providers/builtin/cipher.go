package builtin

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20"

	"github.com/unkn0wn-root/algfetch"
	"github.com/unkn0wn-root/algfetch/param"
)

type cipherDef struct {
	names  []string
	desc   string
	keyLen int
	ivLen  int
	new    func(key, iv []byte) (cipher.Stream, error)
}

var ciphers = []cipherDef{
	{names: []string{"AES-128-CTR"}, desc: "AES-128 in counter mode", keyLen: 16, ivLen: aes.BlockSize, new: newAESCTR},
	{names: []string{"AES-256-CTR"}, desc: "AES-256 in counter mode", keyLen: 32, ivLen: aes.BlockSize, new: newAESCTR},
	{names: []string{"CHACHA20", "ChaCha20"}, desc: "ChaCha20 stream cipher", keyLen: chacha20.KeySize, ivLen: chacha20.NonceSize, new: newChaCha20},
}

func newAESCTR(key, iv []byte) (cipher.Stream, error) {
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(b, iv), nil
}

func newChaCha20(key, iv []byte) (cipher.Stream, error) {
	return chacha20.NewUnauthenticatedCipher(key, iv)
}

type cipherState struct {
	s cipher.Stream
}

// Stream ciphers encrypt and decrypt identically, so one init serves both.
func cipherDispatch(c cipherDef) algfetch.Dispatch {
	get := sizes(0, 1, c.keyLen, c.ivLen)
	start := func(ctx any, key, iv []byte, _ param.Params) error {
		if len(key) != c.keyLen {
			return fmt.Errorf("builtin: %s key length %d, want %d", c.names[0], len(key), c.keyLen)
		}
		if len(iv) != c.ivLen {
			return fmt.Errorf("builtin: %s iv length %d, want %d", c.names[0], len(iv), c.ivLen)
		}
		s, err := c.new(key, iv)
		if err != nil {
			return err
		}
		ctx.(*cipherState).s = s
		return nil
	}
	return algfetch.Dispatch{
		algfetch.Entry(algfetch.FuncNewCtx, func() (any, error) { return &cipherState{}, nil }),
		algfetch.Entry(algfetch.FuncFreeCtx, func(ctx any) { ctx.(*cipherState).s = nil }),
		algfetch.Entry(algfetch.FuncGetParams, func(ps param.Params) int { return answer(ps, get) }),
		algfetch.Entry(algfetch.FuncGettableParams, func() param.Descriptors { return sizeDescriptors(get) }),
		algfetch.Entry(algfetch.FuncCipherEncryptInit, start),
		algfetch.Entry(algfetch.FuncCipherDecryptInit, start),
		algfetch.Entry(algfetch.FuncCipherUpdate, func(ctx any, in []byte) ([]byte, error) {
			out := make([]byte, len(in))
			ctx.(*cipherState).s.XORKeyStream(out, in)
			return out, nil
		}),
		algfetch.Entry(algfetch.FuncCipherFinal, func(any) ([]byte, error) { return nil, nil }),
	}
}
