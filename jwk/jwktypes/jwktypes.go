// Package jwktypes contains types used by the package jwk.
package jwktypes

// KeyUse is type of "use" JWK parameter
// defined in RFC 7517 Section 4.2.
type KeyUse string

const (
	KeyUseUnknown KeyUse = ""

	// KeyUseSig is the value used in the headers to indicate that
	// this key should be used for signatures.
	KeyUseSig KeyUse = "sig"

	// KeyUseEnc is the value used in the headers to indicate that
	// this key should be used for encrypting.
	KeyUseEnc KeyUse = "enc"
)

func (use KeyUse) String() string {
	return string(use)
}

// KeyOp is type of "key_ops" JWK parameter
// defined in RFC 7517 Section 4.3.
type KeyOp string

const (
	// KeyOpSign is used for computing digital signature or MAC.
	KeyOpSign KeyOp = "sign"

	// KeyOpVerify is used for verifying digital signature or MAC.
	KeyOpVerify KeyOp = "verify"

	// KeyOpEncrypt is used for encrypting content.
	KeyOpEncrypt KeyOp = "encrypt"

	// KeyOpDecrypt is used for decrypting content and validating decryption, if applicable.
	KeyOpDecrypt KeyOp = "decrypt"

	// KeyOpWrapKey is used for encrypting key.
	KeyOpWrapKey KeyOp = "wrapKey"

	// KeyOpUnwrapKey is used for decrypting key and validating decryption, if applicable.
	KeyOpUnwrapKey KeyOp = "unwrapKey"

	// KeyOpDeriveKey is used for deriving key.
	KeyOpDeriveKey KeyOp = "deriveKey"

	// KeyOpDeriveBits is used for deriving bits not to be used as a key.
	KeyOpDeriveBits KeyOp = "deriveBits"
)

func (op KeyOp) String() string {
	return string(op)
}

// Use returns the "use" value consistent with op:
// sign and verify belong to "sig", everything else to "enc".
func (op KeyOp) Use() KeyUse {
	switch op {
	case KeyOpSign, KeyOpVerify:
		return KeyUseSig
	default:
		return KeyUseEnc
	}
}

type keyUse interface {
	PublicKeyUse() KeyUse
}

type keyOps interface {
	KeyOperations() []KeyOp
}

// CanUseFor reports whether the declared "use" and "key_ops" of key
// permit op. Keys that declare neither permit everything.
func CanUseFor(key any, op KeyOp) bool {
	return checkKeyOps(key, op) && checkKeyUse(key, op)
}

func checkKeyOps(key any, op KeyOp) bool {
	getter, ok := key.(keyOps)
	if !ok {
		return true
	}

	ops := getter.KeyOperations()
	if ops == nil {
		return true
	}

	for _, v := range ops {
		if v == op {
			return true
		}
	}

	return false
}

func checkKeyUse(key any, op KeyOp) bool {
	getter, ok := key.(keyUse)
	if !ok {
		return true
	}

	switch getter.PublicKeyUse() {
	case KeyUseUnknown:
		return true
	case KeyUseSig:
		return op == KeyOpSign || op == KeyOpVerify
	case KeyUseEnc:
		return op != KeyOpSign && op != KeyOpVerify
	default:
		return false
	}
}
