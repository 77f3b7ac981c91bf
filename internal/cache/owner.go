package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// ownerSaltPlaceholder is the hard-coded application-level salt folded into
// the owner identity hash. Deployments that care about the hash resisting
// offline guessing of the configured username must replace this constant
// with a real per-deployment secret before building; left unchanged, the
// hash is still collision-resistant across usernames but not secret.
const ownerSaltPlaceholder = "notarium-bridge-owner-salt-v1"

// computeOwnerHash derives the owner identity hash bound into a cache at
// creation time and checked on every open (§3, §4.2).
func computeOwnerHash(username string) string {
	sum := sha256.Sum256([]byte(username + ownerSaltPlaceholder))
	return hex.EncodeToString(sum[:])
}
