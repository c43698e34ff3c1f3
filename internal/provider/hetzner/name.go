package hetzner

import (
	"crypto/rand"
	"math/big"
)

const nameSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const nameSuffixLength = 15

// randomNodeName builds "<prefix><15 lowercase-alnum>". crypto/rand keeps
// names unique across process restarts without a seed to get wrong.
func randomNodeName(prefix string) (string, error) {
	suffix := make([]byte, nameSuffixLength)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(nameSuffixAlphabet))))
		if err != nil {
			return "", err
		}
		suffix[i] = nameSuffixAlphabet[n.Int64()]
	}
	return prefix + string(suffix), nil
}
