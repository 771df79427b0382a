// Package registry provides the JOSE header parameter schemas and the
// validation rules shared by the JWS and JWE pipelines.
package registry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/jwa"
)

// Type is the JSON shape a header parameter value must have.
type Type int

const (
	TypeString Type = iota
	TypeInteger
	TypeBoolean
	TypeStringList
	TypeJWK
	TypeURL
	TypeBase64
)

// Parameter is the schema of a single header parameter.
type Parameter struct {
	Description string
	Type        Type
	Required    bool
}

// JWSHeaderParameters is the standard JOSE header parameters for JWS
// defined in RFC 7515 Section 4.1.
var JWSHeaderParameters = map[string]Parameter{
	jwa.AlgorithmKey:                    {Description: "Algorithm", Type: TypeString, Required: true},
	jwa.JWKSetURLKey:                    {Description: "JWK Set URL", Type: TypeURL},
	jwa.JSONWebKey:                      {Description: "JSON Web Key", Type: TypeJWK},
	jwa.KeyIDKey:                        {Description: "Key ID", Type: TypeString},
	jwa.X509URLKey:                      {Description: "X.509 URL", Type: TypeURL},
	jwa.X509CertificateChainKey:         {Description: "X.509 Certificate Chain", Type: TypeStringList},
	jwa.X509CertificateSHA1Thumbprint:   {Description: "X.509 Certificate SHA-1 Thumbprint", Type: TypeBase64},
	jwa.X509CertificateSHA256Thumbprint: {Description: "X.509 Certificate SHA-256 Thumbprint", Type: TypeBase64},
	jwa.TypeKey:                         {Description: "Type", Type: TypeString},
	jwa.ContentTypeKey:                  {Description: "Content Type", Type: TypeString},
	jwa.CriticalKey:                     {Description: "Critical", Type: TypeStringList},
}

// JWEHeaderParameters is the standard JOSE header parameters for JWE
// defined in RFC 7516 Section 4.1 and RFC 7518 Sections 4.6-4.8.
var JWEHeaderParameters = map[string]Parameter{
	jwa.AlgorithmKey:                    {Description: "Algorithm", Type: TypeString, Required: true},
	jwa.EncryptionAlgorithmKey:          {Description: "Encryption Algorithm", Type: TypeString, Required: true},
	jwa.CompressionAlgorithmKey:         {Description: "Compression Algorithm", Type: TypeString},
	jwa.JWKSetURLKey:                    {Description: "JWK Set URL", Type: TypeURL},
	jwa.JSONWebKey:                      {Description: "JSON Web Key", Type: TypeJWK},
	jwa.KeyIDKey:                        {Description: "Key ID", Type: TypeString},
	jwa.X509URLKey:                      {Description: "X.509 URL", Type: TypeURL},
	jwa.X509CertificateChainKey:         {Description: "X.509 Certificate Chain", Type: TypeStringList},
	jwa.X509CertificateSHA1Thumbprint:   {Description: "X.509 Certificate SHA-1 Thumbprint", Type: TypeBase64},
	jwa.X509CertificateSHA256Thumbprint: {Description: "X.509 Certificate SHA-256 Thumbprint", Type: TypeBase64},
	jwa.TypeKey:                         {Description: "Type", Type: TypeString},
	jwa.ContentTypeKey:                  {Description: "Content Type", Type: TypeString},
	jwa.CriticalKey:                     {Description: "Critical", Type: TypeStringList},
	jwa.EphemeralPublicKeyKey:           {Description: "Ephemeral Public Key", Type: TypeJWK},
	jwa.AgreementPartyUInfoKey:          {Description: "Agreement PartyUInfo", Type: TypeBase64},
	jwa.AgreementPartyVInfoKey:          {Description: "Agreement PartyVInfo", Type: TypeBase64},
	jwa.InitializationVectorKey:         {Description: "Initialization Vector", Type: TypeBase64},
	jwa.AuthenticationTagKey:            {Description: "Authentication Tag", Type: TypeBase64},
	jwa.PBES2SaltInputKey:               {Description: "PBES2 Salt Input", Type: TypeBase64},
	jwa.PBES2CountKey:                   {Description: "PBES2 Count", Type: TypeInteger},
}

// Check validates the raw header against the base schema table plus the
// caller's extension parameters. Unknown parameters fail when strict is
// true; schema violations fail regardless of strict.
func Check(pkg string, raw map[string]any, base, extra map[string]Parameter, strict bool) error {
	for name, v := range raw {
		p, ok := base[name]
		if !ok {
			p, ok = extra[name]
		}
		if !ok {
			if strict {
				return fmt.Errorf("%s: %w: unknown header parameter %q", pkg, joserr.ErrInvalidHeaderValue, name)
			}
			continue
		}
		if err := checkType(pkg, name, p.Type, v); err != nil {
			return err
		}
	}
	for name, p := range base {
		if !p.Required {
			continue
		}
		if _, ok := raw[name]; !ok {
			return fmt.Errorf("%s: %w: %s", pkg, joserr.ErrMissingHeader, name)
		}
	}
	return nil
}

// CheckCritical validates the "crit" entries of the protected header
// per RFC 7515 Section 4.1.11: every listed name must be present in the
// protected header. A standard parameter listed in crit is accepted when
// present; any other name must also be understood, that is registered
// through extra.
func CheckCritical(pkg string, protected map[string]any, crit []string, base, extra map[string]Parameter) error {
	for _, name := range crit {
		if _, ok := base[name]; ok {
			// standard parameters are understood implicitly, but a
			// listed one must still be present
			if _, present := protected[name]; !present {
				return fmt.Errorf("%s: %w: critical parameter %q is missing", pkg, joserr.ErrCriticalHeader, name)
			}
			continue
		}
		if _, present := protected[name]; !present {
			return fmt.Errorf("%s: %w: critical parameter %q is missing", pkg, joserr.ErrCriticalHeader, name)
		}
		if _, ok := extra[name]; !ok {
			return fmt.Errorf("%s: %w: critical parameter %q is not understood", pkg, joserr.ErrCriticalHeader, name)
		}
	}
	return nil
}

// CheckDisjoint verifies that no parameter name appears in more than
// one of the JSON-form header objects (RFC 7516 Section 4).
func CheckDisjoint(pkg string, headers ...map[string]any) error {
	seen := make(map[string]struct{})
	for _, h := range headers {
		for name := range h {
			if _, ok := seen[name]; ok {
				return fmt.Errorf("%s: %w: duplicate header parameter %q", pkg, joserr.ErrInvalidHeaderValue, name)
			}
			seen[name] = struct{}{}
		}
	}
	return nil
}

func checkType(pkg, name string, typ Type, v any) error {
	fail := func(want string) error {
		return fmt.Errorf("%s: %w: parameter %q must be %s", pkg, joserr.ErrInvalidHeaderValue, name, want)
	}
	switch typ {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fail("a string")
		}
	case TypeInteger:
		switch v.(type) {
		case json.Number, float64, int, int64:
		default:
			return fail("an integer")
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fail("a boolean")
		}
	case TypeStringList:
		list, ok := v.([]any)
		if !ok {
			if _, ok := v.([]string); ok {
				return nil
			}
			return fail("an array of strings")
		}
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return fail("an array of strings")
			}
		}
	case TypeJWK:
		switch v := v.(type) {
		case map[string]any:
		case json.RawMessage:
			// the header encoders carry an exported key in this form
			var obj map[string]any
			if err := json.Unmarshal(v, &obj); err != nil || obj == nil {
				return fail("a JWK object")
			}
		default:
			return fail("a JWK object")
		}
	case TypeURL:
		s, ok := v.(string)
		if !ok {
			return fail("a URL")
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" {
			return fail("a URL")
		}
	case TypeBase64:
		s, ok := v.(string)
		if !ok {
			return fail("a base64url string")
		}
		if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
			return fail("a base64url string")
		}
	}
	return nil
}
