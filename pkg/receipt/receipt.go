// Package receipt provides tamper-evident, content-addressed receipts for
// mint events.
//
// Digests are SHA-256 over the RFC 8785 (JCS) canonical JSON form of the
// hashed record, so field-for-field-equal records hash identically
// regardless of construction order. The digest carries the "0x" prefix
// followed by 64 lowercase hex characters. This package proves integrity
// only; it never reverses or guesses a hash.
package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

// DigestPrefix tags every well-formed receipt digest.
const DigestPrefix = "0x"

// ErrInvalidFormat is returned when a digest string fails well-formedness
// validation. Local and recoverable; validation never recomputes a hash.
var ErrInvalidFormat = errors.New("receipt: invalid digest format")

// Status of a receipt. Receipts are never deleted; a reversal flips the
// status flag and leaves the original digest untouched.
type Status string

const (
	StatusMinted   Status = "minted"
	StatusReverted Status = "reverted"
)

// Receipt is the immutable record proving a mint event occurred with
// specific parameters. The digest is computed over Payload() at mint time
// and permanently retained, including after a status-flag reversal.
type Receipt struct {
	ID         string     `json:"id"`
	WorkID     string     `json:"work_id"`
	Principal  string     `json:"principal"`
	Sector     string     `json:"sector,omitempty"`
	GrossAse   float64    `json:"gross_ase"`
	NetAse     float64    `json:"net_ase"`
	Tithe      float64    `json:"tithe"`
	Quality    float64    `json:"quality"`
	Digest     string     `json:"digest"`
	Status     Status     `json:"status"`
	MintedAt   time.Time  `json:"minted_at"`
	RevertedAt *time.Time `json:"reverted_at,omitempty"`
}

// Payload is the hashed portion of a receipt. Status and reversal
// timestamps are deliberately excluded: they mutate after minting, while
// the digest must stay fixed.
type Payload struct {
	ID         string  `json:"id"`
	WorkID     string  `json:"work_id"`
	Principal  string  `json:"principal"`
	Sector     string  `json:"sector,omitempty"`
	GrossAse   float64 `json:"gross_ase"`
	NetAse     float64 `json:"net_ase"`
	Tithe      float64 `json:"tithe"`
	Quality    float64 `json:"quality"`
	MintedAt   string  `json:"minted_at"` // RFC 3339 UTC, part of the hashed payload
}

// Payload extracts the hashable view of the receipt.
func (r *Receipt) Payload() Payload {
	return Payload{
		ID:         r.ID,
		WorkID:     r.WorkID,
		Principal:  r.Principal,
		Sector:     r.Sector,
		GrossAse:   r.GrossAse,
		NetAse:     r.NetAse,
		Tithe:      r.Tithe,
		Quality:    r.Quality,
		MintedAt:   r.MintedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Seal computes and stores the receipt digest from its payload.
func (r *Receipt) Seal() error {
	digest, err := Hash(r.Payload())
	if err != nil {
		return err
	}
	r.Digest = digest
	return nil
}

// Hash returns the content digest of any serializable record:
// "0x" + 64 lowercase hex characters of SHA-256 over the JCS canonical
// JSON encoding. Deterministic; no hidden timestamps or salts.
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("receipt: marshal for hashing: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("receipt: canonicalize for hashing: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return DigestPrefix + hex.EncodeToString(sum[:]), nil
}

// ValidateDigest reports whether s is a well-formed receipt digest:
// the "0x" prefix followed by exactly 64 hex characters. Hex case is
// accepted either way. Malformed input yields false; nothing is
// recomputed or guessed.
func ValidateDigest(s string) bool {
	if !strings.HasPrefix(s, DigestPrefix) {
		return false
	}
	body := s[len(DigestPrefix):]
	if len(body) != 64 {
		return false
	}
	_, err := hex.DecodeString(strings.ToLower(body))
	return err == nil
}

// ParseDigest validates s and returns it unchanged, or ErrInvalidFormat.
func ParseDigest(s string) (string, error) {
	if !ValidateDigest(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return s, nil
}
