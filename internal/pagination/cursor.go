package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Cursor represents a decoded pagination cursor. Listing is ordered by
// (uploaded_at desc, id desc); the cursor carries the last row of a page.
type Cursor struct {
	LastID     string
	UploadedAt time.Time
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// EncodeCursor creates an opaque base64 cursor from the last item of a page
func EncodeCursor(lastID string, uploadedAt time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + uploadedAt.UTC().Format(time.RFC3339Nano)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor decodes a cursor previously returned by EncodeCursor.
// An empty cursor decodes to nil (first page).
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}

	uploadedAt, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		LastID:     parts[0],
		UploadedAt: uploadedAt,
	}, nil
}
