package jsonutil

import "bytes"

// Pretty indents a JSON document for human reading. Anything that does not
// parse is returned as text, trimmed.
func Pretty(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '{' && raw[0] != '[') {
		return string(raw)
	}
	var v any
	if err := Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	buf, err := MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(buf)
}
