package jwk

import (
	"encoding/json"

	"github.com/alonbl/joserfc/internal/jsonutils"
)

// Set is a JWK Set defined in RFC 7517 Section 5.
type Set struct {
	Keys []*Key
}

// ParseSet parses a JWK Set.
//
// Keys that use an unknown kty or are missing required members are
// skipped, as RFC 7517 Section 5 recommends.
func ParseSet(data []byte) (*Set, error) {
	var keys struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := jsonutils.Unmarshal(data, &keys); err != nil {
		return nil, err
	}

	list := make([]*Key, 0, len(keys.Keys))
	for _, key := range keys.Keys {
		if key, err := ParseMap(key); err == nil {
			list = append(list, key)
		}
	}
	return &Set{
		Keys: list,
	}, nil
}

// Find finds the key that has kid.
func (set *Set) Find(kid string) (key *Key, found bool) {
	for _, k := range set.Keys {
		if k.kid == kid {
			return k, true
		}
	}
	return nil, false
}

var _ json.Unmarshaler = (*Set)(nil)

// UnmarshalJSON implements [encoding/json.Unmarshaler].
func (set *Set) UnmarshalJSON(data []byte) error {
	s, err := ParseSet(data)
	if err != nil {
		return err
	}
	*set = *s
	return nil
}

var _ json.Marshaler = (*Set)(nil)

// MarshalJSON implements [encoding/json.Marshaler].
func (set *Set) MarshalJSON() ([]byte, error) {
	keys := make([]json.RawMessage, 0, len(set.Keys))
	for _, key := range set.Keys {
		data, err := key.MarshalJSON()
		if err != nil {
			return nil, err
		}
		keys = append(keys, data)
	}
	return json.Marshal(map[string]any{
		"keys": keys,
	})
}
