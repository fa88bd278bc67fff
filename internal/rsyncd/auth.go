package rsyncd

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

// ChallengeSize is the number of random bytes in an authentication
// challenge (spec.md §6's "@RSYNCD: AUTHREQD <base64-challenge>").
const ChallengeSize = 16

// GenerateChallenge returns a fresh random challenge for a module
// requiring authentication.
func GenerateChallenge() ([]byte, error) {
	challenge := make([]byte, ChallengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, errors.Wrap(err, "unable to generate authentication challenge")
	}
	return challenge, nil
}

// ComputeResponse computes the base64 response a client sends back for
// a given challenge and module secret: base64(MD5(challenge||secret)),
// per spec.md §6.
func ComputeResponse(challenge []byte, secret string) string {
	h := md5.New()
	h.Write(challenge)
	h.Write([]byte(secret))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyResponse reports whether response is the correct response to
// challenge for secret.
func VerifyResponse(challenge []byte, secret, response string) bool {
	return ComputeResponse(challenge, secret) == response
}
