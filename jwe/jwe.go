// Package jwe handles JSON Web Encryption defined in RFC 7516.
package jwe

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/alonbl/joserfc/internal/jsonutils"
	"github.com/alonbl/joserfc/joserr"
)

var b64 = base64.RawURLEncoding

// Message is an encrypted message.
type Message struct {
	UnprotectedHeader *Header
	Recipients        []*Recipient

	header                    *Header
	iv, b64iv                 []byte
	ciphertext, b64ciphertext []byte
	protected, b64protected   []byte
	aad, b64aad               []byte
	tag, b64tag               []byte
	plaintext                 []byte
}

// Recipient is one target of an encrypted message.
type Recipient struct {
	header          *Header
	encryptedKey    []byte
	b64encryptedKey []byte
}

// Header returns the per-recipient header.
func (r *Recipient) Header() *Header {
	return r.header
}

// ProtectedHeader returns the protected header of the message.
func (msg *Message) ProtectedHeader() *Header {
	return msg.header
}

// AdditionalAuthenticatedData returns the external AAD of the JSON
// serialization, or nil.
func (msg *Message) AdditionalAuthenticatedData() []byte {
	return msg.aad
}

// Plaintext returns the decrypted content of the message.
// It is available after a successful decrypt only.
func (msg *Message) Plaintext() []byte {
	return msg.plaintext
}

// ExtractCompact parses a Compact Serialized JWE without decrypting it.
//
// The form is the five dot-separated base64url segments of RFC 7516
// Section 7.1. Segments may be empty, the four dots must be present.
func ExtractCompact(data []byte) (*Message, error) {
	data = append([]byte(nil), data...)

	idx1 := bytes.IndexByte(data, '.')
	if idx1 < 0 {
		return nil, fmt.Errorf("jwe: %w: invalid number of segments", joserr.ErrDecode)
	}
	idx2 := bytes.IndexByte(data[idx1+1:], '.')
	if idx2 < 0 {
		return nil, fmt.Errorf("jwe: %w: invalid number of segments", joserr.ErrDecode)
	}
	idx2 += idx1 + 1
	idx3 := bytes.IndexByte(data[idx2+1:], '.')
	if idx3 < 0 {
		return nil, fmt.Errorf("jwe: %w: invalid number of segments", joserr.ErrDecode)
	}
	idx3 += idx2 + 1
	idx4 := bytes.IndexByte(data[idx3+1:], '.')
	if idx4 < 0 {
		return nil, fmt.Errorf("jwe: %w: invalid number of segments", joserr.ErrDecode)
	}
	idx4 += idx3 + 1
	if bytes.IndexByte(data[idx4+1:], '.') >= 0 {
		return nil, fmt.Errorf("jwe: %w: invalid number of segments", joserr.ErrDecode)
	}

	b64header := data[:idx1]
	b64encryptedKey := data[idx1+1 : idx2]
	b64iv := data[idx2+1 : idx3]
	b64ciphertext := data[idx3+1 : idx4]
	b64tag := data[idx4+1:]

	// parse the header
	rawHeader, err := b64Decode(b64header)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode header", joserr.ErrDecode)
	}
	var raw map[string]any
	if err := jsonutils.Unmarshal(rawHeader, &raw); err != nil {
		return nil, fmt.Errorf("jwe: failed to decode header: %w", err)
	}
	h, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}

	encryptedKey, err := b64Decode(b64encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode encrypted key", joserr.ErrDecode)
	}
	iv, err := b64Decode(b64iv)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode iv", joserr.ErrDecode)
	}
	ciphertext, err := b64Decode(b64ciphertext)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode ciphertext", joserr.ErrDecode)
	}
	tag, err := b64Decode(b64tag)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode tag", joserr.ErrDecode)
	}

	return &Message{
		header:        h,
		iv:            iv,
		b64iv:         b64iv,
		ciphertext:    ciphertext,
		b64ciphertext: b64ciphertext,
		protected:     rawHeader,
		b64protected:  b64header,
		tag:           tag,
		b64tag:        b64tag,
		Recipients: []*Recipient{
			{
				encryptedKey:    encryptedKey,
				b64encryptedKey: b64encryptedKey,
			},
		},
	}, nil
}

// Compact encodes the message into Compact Serialization.
func (msg *Message) Compact() ([]byte, error) {
	if len(msg.Recipients) != 1 {
		return nil, fmt.Errorf("jwe: invalid number of recipients in compact serialization: %d", len(msg.Recipients))
	}
	if msg.UnprotectedHeader != nil {
		return nil, fmt.Errorf("jwe: unprotected header is not allowed in compact serialization")
	}
	r := msg.Recipients[0]
	if r.header != nil {
		return nil, fmt.Errorf("jwe: recipient header is not allowed in compact serialization")
	}
	if msg.aad != nil {
		return nil, fmt.Errorf("jwe: additional authenticated data is not allowed in compact serialization")
	}

	data := make([]byte, 0, len(msg.b64protected)+len(r.b64encryptedKey)+len(msg.b64iv)+len(msg.b64ciphertext)+len(msg.b64tag)+4)
	data = append(data, msg.b64protected...)
	data = append(data, '.')
	data = append(data, r.b64encryptedKey...)
	data = append(data, '.')
	data = append(data, msg.b64iv...)
	data = append(data, '.')
	data = append(data, msg.b64ciphertext...)
	data = append(data, '.')
	data = append(data, msg.b64tag...)
	return data, nil
}

type jsonJWE struct {
	Protected   string          `json:"protected"`
	Unprotected map[string]any  `json:"unprotected,omitempty"`
	IV          string          `json:"iv,omitempty"`
	AAD         string          `json:"aad,omitempty"`
	Ciphertext  string          `json:"ciphertext"`
	Tag         string          `json:"tag,omitempty"`
	Recipients  []jsonRecipient `json:"recipients,omitempty"`

	// flattened form
	Header       map[string]any `json:"header,omitempty"`
	EncryptedKey *string        `json:"encrypted_key,omitempty"`
}

type jsonRecipient struct {
	Header       map[string]any `json:"header,omitempty"`
	EncryptedKey string         `json:"encrypted_key"`
}

// ExtractJSON parses a JSON Serialized JWE, general or flattened,
// without decrypting it.
func ExtractJSON(data []byte) (*Message, error) {
	var raw jsonJWE
	if err := jsonutils.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if raw.Recipients != nil && raw.EncryptedKey != nil {
		return nil, fmt.Errorf("jwe: %w: both recipients and encrypted_key are set", joserr.ErrDecode)
	}
	if raw.Recipients == nil {
		// flattened form
		var r jsonRecipient
		if raw.EncryptedKey != nil {
			r.EncryptedKey = *raw.EncryptedKey
		}
		r.Header = raw.Header
		raw.Recipients = []jsonRecipient{r}
	}
	if len(raw.Recipients) == 0 {
		return nil, fmt.Errorf("jwe: %w: recipients is empty", joserr.ErrDecode)
	}

	b64protected := []byte(raw.Protected)
	protected, err := b64Decode(b64protected)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode protected header", joserr.ErrDecode)
	}
	var rawHeader map[string]any
	if err := jsonutils.Unmarshal(protected, &rawHeader); err != nil {
		return nil, fmt.Errorf("jwe: failed to decode protected header: %w", err)
	}
	h, err := decodeHeader(rawHeader)
	if err != nil {
		return nil, err
	}

	var unprotected *Header
	if raw.Unprotected != nil {
		unprotected, err = decodeHeader(raw.Unprotected)
		if err != nil {
			return nil, err
		}
	}

	b64ciphertext := []byte(raw.Ciphertext)
	ciphertext, err := b64Decode(b64ciphertext)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode ciphertext", joserr.ErrDecode)
	}

	b64iv := []byte(raw.IV)
	iv, err := b64Decode(b64iv)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode iv", joserr.ErrDecode)
	}
	b64tag := []byte(raw.Tag)
	tag, err := b64Decode(b64tag)
	if err != nil {
		return nil, fmt.Errorf("jwe: %w: failed to decode tag", joserr.ErrDecode)
	}

	var aad, b64aad []byte
	if raw.AAD != "" {
		b64aad = []byte(raw.AAD)
		aad, err = b64Decode(b64aad)
		if err != nil {
			return nil, fmt.Errorf("jwe: %w: failed to decode aad", joserr.ErrDecode)
		}
	}

	recipients := make([]*Recipient, 0, len(raw.Recipients))
	for _, r := range raw.Recipients {
		var header *Header
		if r.Header != nil {
			header, err = decodeHeader(r.Header)
			if err != nil {
				return nil, err
			}
		}
		b64encryptedKey := []byte(r.EncryptedKey)
		encryptedKey, err := b64Decode(b64encryptedKey)
		if err != nil {
			return nil, fmt.Errorf("jwe: %w: failed to decode encrypted key", joserr.ErrDecode)
		}
		recipients = append(recipients, &Recipient{
			header:          header,
			b64encryptedKey: b64encryptedKey,
			encryptedKey:    encryptedKey,
		})
	}
	return &Message{
		UnprotectedHeader: unprotected,
		header:            h,
		iv:                iv,
		b64iv:             b64iv,
		ciphertext:        ciphertext,
		b64ciphertext:     b64ciphertext,
		protected:         protected,
		b64protected:      b64protected,
		aad:               aad,
		b64aad:            b64aad,
		tag:               tag,
		b64tag:            b64tag,
		Recipients:        recipients,
	}, nil
}

// MarshalJSON implements [encoding/json.Marshaler].
// A message with a single recipient uses the flattened form, with the
// per-recipient header, if any, as the top-level "header" member.
func (msg *Message) MarshalJSON() ([]byte, error) {
	raw := jsonJWE{
		Protected:  string(msg.b64protected),
		IV:         string(msg.b64iv),
		Ciphertext: string(msg.b64ciphertext),
		Tag:        string(msg.b64tag),
		AAD:        string(msg.b64aad),
	}
	if msg.UnprotectedHeader != nil {
		unprotected, err := encodeHeader(msg.UnprotectedHeader)
		if err != nil {
			return nil, err
		}
		raw.Unprotected = unprotected
	}
	if len(msg.Recipients) == 1 {
		r := msg.Recipients[0]
		encryptedKey := string(r.b64encryptedKey)
		raw.EncryptedKey = &encryptedKey
		if r.header != nil {
			header, err := encodeHeader(r.header)
			if err != nil {
				return nil, err
			}
			raw.Header = header
		}
		return json.Marshal(raw)
	}
	recipients := make([]jsonRecipient, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		var header map[string]any
		if r.header != nil {
			var err error
			header, err = encodeHeader(r.header)
			if err != nil {
				return nil, err
			}
		}
		recipients = append(recipients, jsonRecipient{
			Header:       header,
			EncryptedKey: string(r.b64encryptedKey),
		})
	}
	raw.Recipients = recipients
	return json.Marshal(raw)
}

// UnmarshalJSON implements [encoding/json.Unmarshaler].
func (msg *Message) UnmarshalJSON(data []byte) error {
	msg0, err := ExtractJSON(data)
	if err != nil {
		return err
	}
	*msg = *msg0
	return nil
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
