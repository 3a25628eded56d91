// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package formatting hex-encodes and decodes byte strings such as node
// hashes; cmd/mrefctl uses it to print the built root hash.
package formatting

import (
	"encoding/hex"
	"fmt"
)

// Encoding specifies the format of the string representation.
type Encoding uint8

const (
	// HexC is hex with "0x" prefix.
	HexC Encoding = iota
	// HexNC is hex without "0x" prefix.
	HexNC
)

// Encode encodes bytes to string with the specified encoding.
func Encode(encoding Encoding, data []byte) (string, error) {
	switch encoding {
	case HexC:
		return "0x" + hex.EncodeToString(data), nil
	case HexNC:
		return hex.EncodeToString(data), nil
	default:
		return "", fmt.Errorf("unknown encoding format: %d", encoding)
	}
}

// Decode decodes a string to bytes with the specified encoding.
func Decode(encoding Encoding, str string) ([]byte, error) {
	switch encoding {
	case HexC:
		if len(str) < 2 || str[:2] != "0x" {
			return nil, fmt.Errorf("hex string must start with 0x")
		}
		return hex.DecodeString(str[2:])
	case HexNC:
		return hex.DecodeString(str)
	default:
		return nil, fmt.Errorf("unknown encoding format: %d", encoding)
	}
}
