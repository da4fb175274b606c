package chat

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/suPer8Hu/hugg-chat/internal/apperr"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

const (
	FieldSequence  = "sequence"
	FieldUpdatedAt = "updated_at"
)

// Cursor is a keyset position. Tiebreak disambiguates rows sharing Value.
type Cursor struct {
	Field     string    `json:"f"`
	Value     string    `json:"v"`
	Tiebreak  string    `json:"t,omitempty"`
	Direction Direction `json:"d"`
}

var errMalformed = errors.New("malformed cursor")

// CursorCodec turns cursors into opaque URL-safe tokens of the form
// base64url(payload) "." base64url(mac). The MAC is keyed BLAKE2b-256.
type CursorCodec struct {
	key []byte
}

func NewCursorCodec(secret string) *CursorCodec {
	sum := blake2b.Sum256([]byte(secret))
	return &CursorCodec{key: sum[:]}
}

func (c *CursorCodec) mac(payload []byte) []byte {
	h, err := blake2b.New256(c.key)
	if err != nil {
		// key is always 32 bytes
		panic(err)
	}
	h.Write(payload)
	return h.Sum(nil)
}

func (c *CursorCodec) Encode(cur Cursor) (string, error) {
	payload, err := json.Marshal(cur)
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(c.mac(payload)), nil
}

func (c *CursorCodec) Decode(token string) (Cursor, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return Cursor{}, apperr.InvalidCursor(errMalformed)
	}
	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(body)
	if err != nil {
		return Cursor{}, apperr.InvalidCursor(err)
	}
	gotMAC, err := enc.DecodeString(sig)
	if err != nil {
		return Cursor{}, apperr.InvalidCursor(err)
	}
	if subtle.ConstantTimeCompare(gotMAC, c.mac(payload)) != 1 {
		return Cursor{}, apperr.InvalidCursor(errors.New("cursor signature mismatch"))
	}

	var cur Cursor
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cur); err != nil {
		return Cursor{}, apperr.InvalidCursor(err)
	}
	if cur.Field == "" || cur.Value == "" || (cur.Direction != Asc && cur.Direction != Desc) {
		return Cursor{}, apperr.InvalidCursor(errMalformed)
	}
	return cur, nil
}

// DecodeFor decodes token and checks it was emitted for field and direction.
func (c *CursorCodec) DecodeFor(token, field string, dir Direction) (Cursor, error) {
	cur, err := c.Decode(token)
	if err != nil {
		return Cursor{}, err
	}
	if cur.Field != field || cur.Direction != dir {
		return Cursor{}, apperr.InvalidCursor(errors.New("cursor does not match this listing"))
	}
	return cur, nil
}
