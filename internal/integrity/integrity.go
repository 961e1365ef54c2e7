// Package integrity provides tamper-evident hashing and Merkle tree
// construction for matter audit trails. All functions are pure and
// deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Hash version prefix. A future encoding change bumps the prefix so old
// rows stay verifiable.
const hashV1Prefix = "v1:"

// ComputeEventHash produces a versioned SHA-256 hex digest over the
// canonical fields of one audit event. Each field is encoded with a 4-byte
// big-endian length prefix, so freeform text in the detail payload cannot
// collide with field boundaries.
func ComputeEventHash(id, matterID uuid.UUID, eventType string, actorID, versionID *uuid.UUID, kind string, detail []byte, createdAt time.Time) string {
	h := sha256.New()
	writeField := func(b []byte) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		h.Write(lenBuf[:])
		h.Write(b)
	}
	writeUUIDPtr := func(u *uuid.UUID) {
		if u == nil {
			writeField(nil)
			return
		}
		writeField([]byte(u.String()))
	}
	writeField([]byte(id.String()))
	writeField([]byte(matterID.String()))
	writeField([]byte(eventType))
	writeUUIDPtr(actorID)
	writeUUIDPtr(versionID)
	writeField([]byte(kind))
	writeField(detail)
	writeField([]byte(createdAt.UTC().Format(time.RFC3339Nano)))
	return hashV1Prefix + hex.EncodeToString(h.Sum(nil))
}

// VerifyEventHash checks a stored hash against the recomputed one.
func VerifyEventHash(stored string, id, matterID uuid.UUID, eventType string, actorID, versionID *uuid.UUID, kind string, detail []byte, createdAt time.Time) bool {
	return stored == ComputeEventHash(id, matterID, eventType, actorID, versionID, kind, detail, createdAt)
}

// hashPair produces SHA-256(0x01 || a || b) as a hex string. The 0x01
// prefix is a domain separator for internal Merkle nodes (per RFC 6962),
// so internal node hashes can never collide with leaf content hashes.
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write([]byte(a))
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot constructs a Merkle tree from leaf hashes and returns the
// root. Leaves must arrive in trail order (created_at, id ascending) for
// determinism. An empty trail yields an empty root; a single leaf is its
// own root. Odd-length levels hash the last node with itself.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}

	return level[0]
}
