package hetzner

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUserDataEmptyIsEmpty(t *testing.T) {
	out, err := decodeUserData("")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestDecodeUserDataRoundTrips(t *testing.T) {
	raw := "#cloud-config\nruncmd:\n  - echo hi\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))

	out, err := decodeUserData(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestDecodeUserDataRejectsOversizedPayload(t *testing.T) {
	oversized := strings.Repeat("a", maxUserDataBytes+1)
	encoded := base64.StdEncoding.EncodeToString([]byte(oversized))

	_, err := decodeUserData(encoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestDecodeUserDataRejectsInvalidBase64(t *testing.T) {
	_, err := decodeUserData("not-valid-base64!!")
	assert.Error(t, err)
}
