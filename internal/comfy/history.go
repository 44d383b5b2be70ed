package comfy

import (
	"bytes"
	"encoding/json"
	"io"

	"sdbooth/internal/pkg/errors"
)

// History is the raw history/{prompt_id} document.
type History []byte

// FirstOutputImage is a shorthand for the package level function.
func (h History) FirstOutputImage() (string, error) {
	return FirstOutputImage(h)
}

type historyImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type nodeOutput struct {
	Images []historyImage `json:"images"`
}

// FirstOutputImage walks the first history entry's outputs in document order
// and returns the filename of the first image whose type is "output".
// A document with no entries or no output image yields CodeNoOutput; a
// document of the wrong shape yields CodeMalformed.
func FirstOutputImage(raw []byte) (string, error) {
	entries, err := orderedObject(raw)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeMalformed, "comfy.parse", "history root is not an object")
	}
	if len(entries) == 0 {
		return "", errors.New(errors.CodeNoOutput, "history has no entries")
	}

	var entry struct {
		Outputs json.RawMessage `json:"outputs"`
	}
	if err := json.Unmarshal(entries[0].value, &entry); err != nil {
		return "", errors.WrapWithCode(err, errors.CodeMalformed, "comfy.parse", "history entry is not an object")
	}
	if len(entry.Outputs) == 0 {
		return "", errors.New(errors.CodeMalformed, "history entry has no outputs").
			WithField("prompt_id", entries[0].key)
	}

	nodes, err := orderedObject(entry.Outputs)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeMalformed, "comfy.parse", "outputs is not an object")
	}

	for _, n := range nodes {
		var out nodeOutput
		if err := json.Unmarshal(n.value, &out); err != nil {
			return "", errors.WrapWithCode(err, errors.CodeMalformed, "comfy.parse", "bad node output").
				WithField("node", n.key)
		}
		for _, img := range out.Images {
			if img.Type != "output" {
				continue
			}
			if img.Filename == "" {
				return "", errors.New(errors.CodeMalformed, "output image has no filename").
					WithField("node", n.key)
			}
			return img.Filename, nil
		}
	}

	return "", errors.New(errors.CodeNoOutput, "no output image yet")
}

type member struct {
	key   string
	value json.RawMessage
}

// orderedObject decodes a JSON object keeping member order.
func orderedObject(raw []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.Newf(errors.CodeMalformed, "expected object, got %v", tok)
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)

		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: v})
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return members, nil
}
