package algfetch

import "fmt"

type resultKind uint8

const (
	resultNone resultKind = iota
	resultBackend
	resultNotProviderBacked
	resultUnsupported
)

// Numeric forms of the non-backend outcomes.
const (
	CodeNotProviderBacked = -2
	CodeUnsupported       = -1
)

// ParamResult is the outcome of a get or set parameter call. Exactly one of
// NotProviderBacked, Unsupported or Backend reports true, except for the
// zero value: calls that fail with an error return it, and it reports none.
type ParamResult struct {
	kind resultKind
	code int
}

func notProviderBacked() ParamResult { return ParamResult{kind: resultNotProviderBacked} }
func unsupported() ParamResult       { return ParamResult{kind: resultUnsupported} }
func backendResult(code int) ParamResult {
	return ParamResult{kind: resultBackend, code: code}
}

// NotProviderBacked reports that the target has no provider, so parameters
// do not apply.
func (r ParamResult) NotProviderBacked() bool { return r.kind == resultNotProviderBacked }

// Unsupported reports that the provider has no slot for this call.
func (r ParamResult) Unsupported() bool { return r.kind == resultUnsupported }

// Backend returns the provider's own return code, untouched.
func (r ParamResult) Backend() (code int, ok bool) {
	if r.kind != resultBackend {
		return 0, false
	}
	return r.code, true
}

// Valid reports whether r carries an outcome at all.
func (r ParamResult) Valid() bool { return r.kind != resultNone }

// Code folds the result into the numeric convention: -2, -1, or the
// provider's code. It is 0 for the zero ParamResult, so check Valid or the
// accompanying error first.
func (r ParamResult) Code() int {
	switch r.kind {
	case resultNotProviderBacked:
		return CodeNotProviderBacked
	case resultUnsupported:
		return CodeUnsupported
	default:
		return r.code
	}
}

func (r ParamResult) String() string {
	switch r.kind {
	case resultNone:
		return "none"
	case resultNotProviderBacked:
		return "not provider-backed"
	case resultUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("backend(%d)", r.code)
	}
}
