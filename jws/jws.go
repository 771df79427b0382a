// Package jws handles JSON Web Signatures defined in RFC 7515.
package jws

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/alonbl/joserfc/internal/jsonutils"
	"github.com/alonbl/joserfc/joserr"
	"github.com/alonbl/joserfc/sig"
)

// shorthand for base64.RawURLEncoding
var b64 = base64.RawURLEncoding

// Message is a signed message.
type Message struct {
	Signatures []*Signature

	// payload is kept in its base64url-encoded form; verification
	// always runs over the bytes that were actually received.
	payload []byte
}

// Signature is a signature of Message.
type Signature struct {
	header       *Header // Unprotected Header
	protected    *Header // Protected Header
	rawProtected []byte  // base64url-encoded protected header
	b64signature []byte
	signature    []byte
	verified     bool
}

// Protected returns the protected header of the signature.
func (s *Signature) Protected() *Header {
	return s.protected
}

// Header returns the unprotected header of the signature.
func (s *Signature) Header() *Header {
	return s.header
}

// Verified reports whether the signature was verified by the last
// deserialize or validate call.
func (s *Signature) Verified() bool {
	return s.verified
}

// NewMessage returns a new Message that has no signature.
func NewMessage(payload []byte) *Message {
	return &Message{
		payload: b64Encode(payload),
	}
}

// Payload returns the decoded payload of the message.
func (msg *Message) Payload() ([]byte, error) {
	payload, err := b64Decode(msg.payload)
	if err != nil {
		return nil, fmt.Errorf("jws: %w: failed to decode payload", joserr.ErrDecode)
	}
	return payload, nil
}

// sign computes a new signature over the payload with the protected
// header and appends it to the message.
func (msg *Message) sign(protected, header *Header, key sig.SigningKey) error {
	raw, err := protected.MarshalJSON()
	if err != nil {
		return err
	}
	b64header := b64Encode(raw)

	buf := make([]byte, 0, len(b64header)+len(msg.payload)+1)
	buf = append(buf, b64header...)
	buf = append(buf, '.')
	buf = append(buf, msg.payload...)
	signature, err := key.Sign(buf)
	if err != nil {
		return fmt.Errorf("jws: failed to sign: %w", err)
	}

	msg.Signatures = append(msg.Signatures, &Signature{
		protected:    protected,
		header:       header,
		rawProtected: b64header,
		b64signature: b64Encode(signature),
		signature:    signature,
	})
	return nil
}

// verify checks the signature over the original received bytes.
func (msg *Message) verify(s *Signature, key sig.SigningKey) error {
	buf := make([]byte, 0, len(s.rawProtected)+len(msg.payload)+1)
	buf = append(buf, s.rawProtected...)
	buf = append(buf, '.')
	buf = append(buf, msg.payload...)
	if err := key.Verify(buf, s.signature); err != nil {
		return err
	}
	s.verified = true
	return nil
}

// ExtractCompact parses a Compact Serialized JWS without verifying it.
// Use [DeserializeCompact] to parse and verify in one step, or
// [ValidateCompact] to verify the extracted message.
func ExtractCompact(data []byte) (*Message, error) {
	// copy data
	data = append([]byte(nil), data...)

	// split into exactly three segments
	idx1 := bytes.IndexByte(data, '.')
	if idx1 < 0 {
		return nil, fmt.Errorf("jws: %w: invalid number of segments", joserr.ErrDecode)
	}
	idx2 := bytes.IndexByte(data[idx1+1:], '.')
	if idx2 < 0 {
		return nil, fmt.Errorf("jws: %w: invalid number of segments", joserr.ErrDecode)
	}
	idx2 += idx1 + 1
	if bytes.IndexByte(data[idx2+1:], '.') >= 0 {
		return nil, fmt.Errorf("jws: %w: invalid number of segments", joserr.ErrDecode)
	}
	b64header := data[:idx1]
	payload := data[idx1+1 : idx2]
	b64signature := data[idx2+1:]

	// decode header
	header, err := b64Decode(b64header)
	if err != nil {
		return nil, fmt.Errorf("jws: %w: failed to parse JOSE header", joserr.ErrDecode)
	}
	var h Header
	if err := h.UnmarshalJSON(header); err != nil {
		return nil, fmt.Errorf("jws: failed to parse JOSE header: %w", err)
	}

	// decode signature
	signature, err := b64Decode(b64signature)
	if err != nil {
		return nil, fmt.Errorf("jws: %w: failed to parse signature", joserr.ErrDecode)
	}

	// the payload segment must decode, too
	if _, err := b64Decode(payload); err != nil {
		return nil, fmt.Errorf("jws: %w: failed to parse payload", joserr.ErrDecode)
	}

	return &Message{
		payload: payload,
		Signatures: []*Signature{
			{
				protected:    &h,
				rawProtected: b64header,
				b64signature: b64signature,
				signature:    signature,
			},
		},
	}, nil
}

// ExtractJSON parses a JSON Serialized JWS, general or flattened,
// without verifying it.
func ExtractJSON(data []byte) (*Message, error) {
	var msg Message
	if err := msg.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnmarshalJSON implements [encoding/json.Unmarshaler].
// It parses data as JSON Serialized JWS.
func (msg *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := jsonutils.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("jws: failed to parse JWS: %w", err)
	}

	var m Message

	// decode payload
	if payloadAny, ok := raw["payload"]; ok {
		payload, ok := payloadAny.(string)
		if !ok {
			return fmt.Errorf("jws: %w: invalid type of payload: %T", joserr.ErrDecode, payloadAny)
		}
		m.payload = []byte(payload)
	}

	sigsAny, hasSigs := raw["signatures"]
	sigAny, flattened := raw["signature"]

	if hasSigs && flattened {
		return fmt.Errorf("jws: %w: both signatures and signature are set", joserr.ErrDecode)
	}
	if !hasSigs && !flattened {
		return fmt.Errorf("jws: %w: neither signatures nor signature are set", joserr.ErrDecode)
	}

	if flattened {
		sigs := map[string]any{
			"signature": sigAny,
		}
		if protected, ok := raw["protected"]; ok {
			sigs["protected"] = protected
		}
		if header, ok := raw["header"]; ok {
			sigs["header"] = header
		}
		sigsAny = []any{sigs}
	}

	sigsArray, ok := sigsAny.([]any)
	if !ok {
		return fmt.Errorf("jws: %w: invalid type of signatures: %T", joserr.ErrDecode, sigsAny)
	}
	if len(sigsArray) == 0 {
		return fmt.Errorf("jws: %w: signatures is empty", joserr.ErrDecode)
	}
	// decode signatures
	signatures := make([]*Signature, 0, len(sigsArray))
	for _, sigAny := range sigsArray {
		var s Signature

		sigObject, ok := sigAny.(map[string]any)
		if !ok {
			return fmt.Errorf("jws: %w: invalid type of signatures[]: %T", joserr.ErrDecode, sigAny)
		}

		// decode protected header
		if protectedAny, ok := sigObject["protected"]; ok {
			protectedString, ok := protectedAny.(string)
			if !ok {
				return fmt.Errorf("jws: %w: invalid type of signatures[].protected: %T", joserr.ErrDecode, protectedAny)
			}
			raw, err := b64.DecodeString(protectedString)
			if err != nil {
				return fmt.Errorf("jws: %w: failed to parse protected header", joserr.ErrDecode)
			}
			protected := NewHeader()
			if err := protected.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("jws: failed to parse protected header: %w", err)
			}
			s.rawProtected = []byte(protectedString)
			s.protected = protected
		}

		// decode unprotected header
		if unprotectedAny, ok := sigObject["header"]; ok {
			unprotectedObject, ok := unprotectedAny.(map[string]any)
			if !ok {
				return fmt.Errorf("jws: %w: invalid type of signatures[].header: %T", joserr.ErrDecode, unprotectedAny)
			}
			header, err := decodeHeader(unprotectedObject)
			if err != nil {
				return fmt.Errorf("jws: failed to parse header: %w", err)
			}
			s.header = header
		}

		// decode signature
		signatureAny, ok := sigObject["signature"]
		if !ok {
			return fmt.Errorf("jws: %w: signature is missing", joserr.ErrDecode)
		}
		signatureString, ok := signatureAny.(string)
		if !ok {
			return fmt.Errorf("jws: %w: invalid type of signatures[].signature: %T", joserr.ErrDecode, signatureAny)
		}
		signature, err := b64.DecodeString(signatureString)
		if err != nil {
			return fmt.Errorf("jws: %w: failed to parse signature", joserr.ErrDecode)
		}
		s.b64signature = []byte(signatureString)
		s.signature = signature

		signatures = append(signatures, &s)
	}
	m.Signatures = signatures

	*msg = m
	return nil
}

// MarshalJSON implements [encoding/json.Marshaler].
// A message with a single signature uses the flattened form.
func (msg *Message) MarshalJSON() ([]byte, error) {
	raw := map[string]any{
		"payload": string(msg.payload),
	}
	if len(msg.Signatures) == 1 {
		// Flattened JWS JSON Serialization
		s := msg.Signatures[0]
		raw["protected"] = string(s.rawProtected)
		raw["signature"] = string(s.b64signature)
		if s.header != nil {
			raw["header"] = s.header
		}
	} else {
		// Complete JWS JSON Serialization Representation
		signatures := make([]any, 0, len(msg.Signatures))
		for _, s := range msg.Signatures {
			raw := map[string]any{
				"protected": string(s.rawProtected),
				"signature": string(s.b64signature),
			}
			if s.header != nil {
				raw["header"] = s.header
			}
			signatures = append(signatures, raw)
		}
		raw["signatures"] = signatures
	}
	return json.Marshal(raw)
}

// Compact encodes the JWS into Compact Serialization.
func (msg *Message) Compact() ([]byte, error) {
	if len(msg.Signatures) != 1 {
		return nil, fmt.Errorf("jws: invalid number of signatures: %d", len(msg.Signatures))
	}
	s := msg.Signatures[0]

	buf := make([]byte, 0, len(s.rawProtected)+len(msg.payload)+len(s.b64signature)+2)
	buf = append(buf, s.rawProtected...)
	buf = append(buf, '.')
	buf = append(buf, msg.payload...)
	buf = append(buf, '.')
	buf = append(buf, s.b64signature...)
	return buf, nil
}

func b64Decode(src []byte) ([]byte, error) {
	dst := make([]byte, b64.DecodedLen(len(src)))
	n, err := b64.Decode(dst, src)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

func b64Encode(src []byte) []byte {
	dst := make([]byte, b64.EncodedLen(len(src)))
	b64.Encode(dst, src)
	return dst
}
