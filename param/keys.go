package param

// Well-known keys.
const (
	KeySize       = "size"
	KeyBlockSize  = "blocksize"
	KeyKeyLen     = "keylen"
	KeyIVLen      = "ivlen"
	KeyDigest     = "digest"
	KeyProperties = "properties"
	KeyKey        = "key"
	KeyPassword   = "pass"
	KeySalt       = "salt"
	KeyIter       = "iter"
	KeyInfo       = "info"
	KeyMode       = "mode"
	KeyMemory     = "memcost"
	KeyThreads    = "threads"
	KeyStrength   = "strength"
	KeyMaxRequest = "max_request"
	KeyBits       = "bits"
	KeyPublicKey  = "pub"
	KeyPrivateKey = "priv"
	KeyLabel      = "label"
)
