package docstore

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Cursor is a position in a created_at ordered result set.
type Cursor struct {
	At time.Time
	ID string
}

// CursorOf returns the position of doc.
func CursorOf(doc Document) Cursor {
	m := doc.DocMeta()
	return Cursor{At: m.CreatedAt, ID: m.ID}
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.At.UTC().UnixNano(), 10) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Encode. An empty token yields
// (nil, nil): start from the beginning.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidQuery
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidQuery
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, ErrInvalidQuery
	}
	return &Cursor{At: time.Unix(0, nanos).UTC(), ID: id}, nil
}
