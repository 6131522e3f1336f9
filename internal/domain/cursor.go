package domain

import (
	"encoding/json"
	"fmt"
)

// Cursor is the resume position of an index job. It always points at a
// section boundary, never mid-section.
type Cursor struct {
	BookIndex    int `json:"bookIndex"`
	SectionIndex int `json:"sectionIndex"`
}

// ParseCursor deserializes a stored cursor. A malformed or negative cursor
// means resume from zero rather than trusting a corrupt checkpoint.
func ParseCursor(raw string) Cursor {
	if raw == "" {
		return Cursor{}
	}
	var c Cursor
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Cursor{}
	}
	if c.BookIndex < 0 || c.SectionIndex < 0 {
		return Cursor{}
	}
	return c
}

// Encode serializes the cursor for storage.
func (c Cursor) Encode() string {
	b, err := json.Marshal(c)
	if err != nil {
		// Cursor has only int fields, marshal cannot fail.
		panic(fmt.Sprintf("encode cursor: %v", err))
	}
	return string(b)
}
