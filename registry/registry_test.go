package registry

import (
	"errors"
	"testing"

	"github.com/alonbl/joserfc/joserr"
)

func TestCheckUnknownParameter(t *testing.T) {
	raw := map[string]any{
		"alg":   "HS256",
		"extra": "hi",
	}
	err := Check("jws", raw, JWSHeaderParameters, nil, true)
	if !errors.Is(err, joserr.ErrInvalidHeaderValue) {
		t.Errorf("want ErrInvalidHeaderValue, got %v", err)
	}

	// non-strict mode lets it pass
	if err := Check("jws", raw, JWSHeaderParameters, nil, false); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// so does registering the parameter
	extra := map[string]Parameter{
		"extra": {Description: "Extra header", Type: TypeString},
	}
	if err := Check("jws", raw, JWSHeaderParameters, extra, true); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckRequired(t *testing.T) {
	err := Check("jws", map[string]any{"kid": "1"}, JWSHeaderParameters, nil, true)
	if !errors.Is(err, joserr.ErrMissingHeader) {
		t.Errorf("want ErrMissingHeader, got %v", err)
	}
}

func TestCheckTypes(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		ok   bool
	}{
		{"kid must be a string", map[string]any{"alg": "HS256", "kid": 123}, false},
		{"jwk must be an object", map[string]any{"alg": "HS256", "jwk": "dict"}, false},
		{"jku must be a url", map[string]any{"alg": "HS256", "jku": "url"}, false},
		{"x5c must be an array", map[string]any{"alg": "HS256", "x5c": "url"}, false},
		{"x5c must hold strings", map[string]any{"alg": "HS256", "x5c": []any{1, 2}}, false},
		{"crit must hold strings", map[string]any{"alg": "HS256", "crit": []any{1}}, false},
		{"valid header", map[string]any{"alg": "HS256", "kid": "1", "jku": "https://example.com/keys"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check("jws", tt.raw, JWSHeaderParameters, nil, true)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, joserr.ErrInvalidHeaderValue) {
				t.Errorf("want ErrInvalidHeaderValue, got %v", err)
			}
		})
	}
}

func TestCheckCritical(t *testing.T) {
	// a critical parameter must be present
	err := CheckCritical("jws", map[string]any{"alg": "HS256"}, []string{"kid"}, JWSHeaderParameters, nil)
	if !errors.Is(err, joserr.ErrCriticalHeader) {
		t.Errorf("want ErrCriticalHeader, got %v", err)
	}
	if err := CheckCritical("jws", map[string]any{"alg": "HS256", "kid": "1"}, []string{"kid"}, JWSHeaderParameters, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// an extension parameter must be registered to be understood
	protected := map[string]any{"alg": "HS256", "exp": 123}
	err = CheckCritical("jws", protected, []string{"exp"}, JWSHeaderParameters, nil)
	if !errors.Is(err, joserr.ErrCriticalHeader) {
		t.Errorf("want ErrCriticalHeader, got %v", err)
	}
	extra := map[string]Parameter{
		"exp": {Description: "Expiration", Type: TypeInteger},
	}
	if err := CheckCritical("jws", protected, []string{"exp"}, JWSHeaderParameters, extra); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckDisjoint(t *testing.T) {
	err := CheckDisjoint("jwe",
		map[string]any{"alg": "A128KW"},
		map[string]any{"enc": "A128GCM"},
		map[string]any{"kid": "1"},
	)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err = CheckDisjoint("jwe",
		map[string]any{"alg": "A128KW"},
		map[string]any{"alg": "A256KW"},
	)
	if !errors.Is(err, joserr.ErrInvalidHeaderValue) {
		t.Errorf("want ErrInvalidHeaderValue, got %v", err)
	}
}
