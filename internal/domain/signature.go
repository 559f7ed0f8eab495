package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// Signature types known to the bundler.
const (
	TypeYara     = "yara"
	TypeSuricata = "suricata"
	TypeTagcheck = "tagcheck"
	TypeSigma    = "sigma"
)

// Signature is a detection rule. Signatures sharing SignatureID form a family.
type Signature struct {
	ID              string     `json:"id,omitempty"`
	SignatureID     string     `json:"signature_id,omitempty"`
	Revision        int        `json:"revision,omitempty"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Source          string     `json:"source"`
	Data            string     `json:"data"`
	Classification  string     `json:"classification,omitempty"`
	Status          string     `json:"status,omitempty"`
	StateChangeDate *time.Time `json:"state_change_date,omitempty"`
	StateChangeUser string     `json:"state_change_user,omitempty"`
	Order           int        `json:"order"`
	LastModified    time.Time  `json:"last_modified"`
}

// MissingFields lists the mandatory fields left empty.
func (s *Signature) MissingFields() []string {
	var missing []string
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if s.Type == "" {
		missing = append(missing, "type")
	}
	if s.Data == "" {
		missing = append(missing, "data")
	}
	return missing
}

// Key is the storage key of a freshly added revision: {type}_{signature_id}_{revision}.
func (s *Signature) Key() string {
	return fmt.Sprintf("%s_%s_%d", s.Type, s.SignatureID, s.Revision)
}

// BundlePath is the archive entry a signature is bundled into.
func (s *Signature) BundlePath() string {
	return s.Type + "/" + s.Source
}

// StatusChange stamps a new status.
func (s *Signature) StatusChange(status, user string, at time.Time) {
	s.Status = status
	s.StateChangeUser = user
	s.StateChangeDate = &at
}

const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ShortID derives a 64-bit, base62 encoded id from data.
func ShortID(data string) string {
	sum := sha256.Sum256([]byte(data))
	n := binary.BigEndian.Uint64(sum[:8])
	if n == 0 {
		return "0"
	}
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base62[n%62]
		n /= 62
	}
	return string(buf[i:])
}
