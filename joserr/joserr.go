// Package joserr defines the error kinds shared by all JOSE layers.
//
// Every package in this module wraps one of these sentinels with
// fmt.Errorf("...: %w", ...) so that callers can classify failures
// with errors.Is without depending on message text.
package joserr

import "errors"

// ErrDecode is malformed base64url, a wrong number of segments,
// or JSON that is not an object where an object is required.
var ErrDecode = errors.New("jose: decode error")

// ErrMissingHeader is a required header parameter that is absent.
var ErrMissingHeader = errors.New("jose: missing header parameter")

// ErrInvalidHeaderValue is a header parameter with the wrong type or value.
var ErrInvalidHeaderValue = errors.New("jose: invalid header value")

// ErrUnknownAlgorithm is an alg, enc, or zip value that is not registered.
var ErrUnknownAlgorithm = errors.New("jose: unknown algorithm")

// ErrAlgorithmNotAllowed is a registered algorithm that is not in the
// caller's allowlist.
var ErrAlgorithmNotAllowed = errors.New("jose: algorithm not allowed")

// ErrUnsupportedKeyUse is a key whose declared "use" forbids the operation.
var ErrUnsupportedKeyUse = errors.New("jose: unsupported key use")

// ErrUnsupportedKeyAlgorithm is a key whose declared "alg" differs from
// the algorithm of the operation.
var ErrUnsupportedKeyAlgorithm = errors.New("jose: unsupported key algorithm")

// ErrUnsupportedKeyOperation is a key whose "key_ops" forbids the operation.
var ErrUnsupportedKeyOperation = errors.New("jose: unsupported key operation")

// ErrInvalidKey is key material that is malformed or of the wrong kind
// for the algorithm.
var ErrInvalidKey = errors.New("jose: invalid key")

// ErrBadSignature is a failed JWS signature verification or a failed JWE
// authentication tag check. The two are deliberately indistinguishable.
var ErrBadSignature = errors.New("jose: bad signature")

// ErrCriticalHeader is a crit parameter that is unknown or missing.
var ErrCriticalHeader = errors.New("jose: invalid critical header")
