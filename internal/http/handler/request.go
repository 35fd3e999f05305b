package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errInvalidExpiresIn = errors.New("expiresIn must be a whole number of hours")

// hours decodes expiresIn from a JSON integer or a numeric string such as "24".
// null and "" decode as absent.
type hours struct {
	value *int
}

func (h *hours) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		h.value = nil
		return nil
	}

	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errInvalidExpiresIn
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			h.value = nil
			return nil
		}
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return errInvalidExpiresIn
	}
	h.value = &n
	return nil
}

// saveNoteRequest is the body of POST /api/notes.
type saveNoteRequest struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Password  string `json:"password"`
	ExpiresIn hours  `json:"expiresIn"`
}

// accessNoteRequest is the body of POST /api/notes/:name/access.
type accessNoteRequest struct {
	Password string `json:"password"`
}

// saveNoteResponse is returned with 201 on a successful save.
type saveNoteResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}
