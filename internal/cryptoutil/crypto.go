package cryptoutil

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// HMACHex returns the lowercase hex HMAC-SHA256 of message keyed by secret.
func HMACHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign computes the RTMS handshake signature over "clientID,meetingID,streamID".
// secret must be non-empty.
func Sign(clientID, meetingID, streamID, secret string) string {
	return HMACHex(secret, strings.Join([]string{clientID, meetingID, streamID}, ","))
}

// RandomSequence returns a random non-negative sequence number below 1e9.
func RandomSequence() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:]) % 1_000_000_000), nil
}
