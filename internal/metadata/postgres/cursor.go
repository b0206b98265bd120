package postgres

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// cursorToken is the opaque pagination cursor shape, base64-JSON encoded,
// generalized from the teacher's (CursorTime, CursorID) list pattern in
// internal/repository's ListJobsInput/ListSchedulesInput.
type cursorToken struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

func encodeCursor(c cursorToken) string {
	b, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (*cursorToken, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var c cursorToken
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func joinAnd(clauses []string) string { return strings.Join(clauses, " AND ") }
