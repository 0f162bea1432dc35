package service

import (
	"io"

	"github.com/bytedance/sonic"
)

// jsonKey: под этим ключом resty ищет кодек для application/json.
const jsonKey = "json"

func encodeJSON(w io.Writer, v any) error {
	return sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

func decodeJSON(r io.Reader, v any) error {
	return sonic.ConfigDefault.NewDecoder(r).Decode(v)
}
