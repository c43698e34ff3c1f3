package hetzner

import (
	"encoding/base64"
	"fmt"
)

// maxUserDataBytes is the Hetzner Cloud API's documented ceiling on decoded
// cloud-init user data.
const maxUserDataBytes = 32 * 1024

// decodeUserData base64-decodes raw (empty input decodes to empty output)
// and rejects a payload over maxUserDataBytes once decoded.
func decodeUserData(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	if len(decoded) > maxUserDataBytes {
		return "", fmt.Errorf("decoded user data is %d bytes, exceeds %d byte limit", len(decoded), maxUserDataBytes)
	}
	return string(decoded), nil
}
