package algorithm

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Encoding is the textual form of binary cipher and digest output.
type Encoding int

const (
	Base64 Encoding = iota
	Hex
)

// ParseEncoding accepts "base64", "hex" and "hexadecimal" in any case.
// The empty string selects def.
func ParseEncoding(s string, def Encoding) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "base64":
		return Base64, nil
	case "hex", "hexadecimal":
		return Hex, nil
	default:
		return def, fmt.Errorf("unsupported output encoding %q (expected base64 or hexadecimal)", s)
	}
}

func (e Encoding) String() string {
	if e == Hex {
		return "hexadecimal"
	}
	return "base64"
}

// Encode renders b in the encoding.
func (e Encoding) Encode(b []byte) string {
	if e == Hex {
		return strings.ToUpper(hex.EncodeToString(b))
	}
	return base64.StdEncoding.EncodeToString(b)
}

// Decode parses s. Hex input is case-insensitive.
func (e Encoding) Decode(s string) ([]byte, error) {
	if e == Hex {
		return hex.DecodeString(s)
	}
	return base64.StdEncoding.DecodeString(s)
}
