package media

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"strconv"
)

const (
	ActionStore  = "store"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Instruction is one entry of the meta.files array of a create/update document.
type Instruction struct {
	Action   string `json:"action"`
	ID       ID     `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	FileName string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"`

	// File is set for multipart requests; it takes precedence over Content.
	File *multipart.FileHeader `json:"-"`
}

// ID is a media id sent either as a JSON number or a numeric string. Anything else is zero.
type ID uint

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		*id = 0
		return nil
	}
	*id = ID(n)
	return nil
}

// ParseInstructions decodes the meta.files member. A missing member is no instructions.
func ParseInstructions(raw json.RawMessage) ([]Instruction, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []Instruction
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
