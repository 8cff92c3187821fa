package algfetch

import (
	"fmt"
	"strings"
)

// Operation is the primitive kind a Method Object implements.
type Operation uint8

const (
	OpDigest Operation = iota + 1
	OpCipher
	OpMAC
	OpKDF
	OpRand
	OpKeyMgmt
	OpKeyExch
	OpSignature
	OpAsymCipher
)

var opNames = [...]string{
	OpDigest:     "digest",
	OpCipher:     "cipher",
	OpMAC:        "mac",
	OpKDF:        "kdf",
	OpRand:       "rand",
	OpKeyMgmt:    "keymgmt",
	OpKeyExch:    "keyexch",
	OpSignature:  "signature",
	OpAsymCipher: "asymcipher",
}

// Operations lists every kind in declaration order.
func Operations() []Operation {
	return []Operation{
		OpDigest, OpCipher, OpMAC, OpKDF, OpRand,
		OpKeyMgmt, OpKeyExch, OpSignature, OpAsymCipher,
	}
}

func (o Operation) String() string {
	if o == 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
	return opNames[o]
}

// Valid reports whether o is one of the declared kinds.
func (o Operation) Valid() bool { return o > 0 && int(o) < len(opNames) }

// ParseOperation maps a kind name (case-insensitive) back to its Operation.
func ParseOperation(s string) (Operation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, op := range Operations() {
		if opNames[op] == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("algfetch: unknown operation %q", s)
}
