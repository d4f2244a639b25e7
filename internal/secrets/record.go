package secrets

import (
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField marks a payload that omits one of its required fields.
// Distinct from malformed PEM so callers can report the two separately.
var ErrMissingField = errors.New("missing required field")

// Record is one TLS certificate fetched from the secret store. Records are
// constructed fresh on every sync cycle and never mutated afterwards.
type Record struct {
	// Name is the secret name, unique within a cycle.
	Name string
	// CertificatePEM and PrivateKeyPEM are required PEM blocks.
	CertificatePEM string
	PrivateKeyPEM  string
	// ChainPEM optionally carries intermediate certificates.
	ChainPEM string
	// DomainName, when present, drives file naming.
	DomainName  string
	Description string
}

// Validate rejects records whose certificate or key is empty or not
// well-formed PEM. Malformed records never reach the local store.
func (r *Record) Validate() error {
	if r.CertificatePEM == "" {
		return fmt.Errorf("%w: certificate", ErrMissingField)
	}
	if r.PrivateKeyPEM == "" {
		return fmt.Errorf("%w: private_key", ErrMissingField)
	}
	if block, _ := pem.Decode([]byte(r.CertificatePEM)); block == nil {
		return errors.New("certificate is not valid PEM")
	}
	if block, _ := pem.Decode([]byte(r.PrivateKeyPEM)); block == nil {
		return errors.New("private_key is not valid PEM")
	}
	if r.ChainPEM != "" {
		if block, _ := pem.Decode([]byte(r.ChainPEM)); block == nil {
			return errors.New("certificate_chain is not valid PEM")
		}
	}
	return nil
}

// FileBase returns the basename used for this record's files on disk. The
// domain name wins when present, otherwise the secret name is sanitized.
func (r *Record) FileBase() string {
	if r.DomainName != "" {
		base := strings.ReplaceAll(r.DomainName, "*", "wildcard")
		return strings.ReplaceAll(base, ".", "_")
	}
	base := strings.ReplaceAll(r.Name, "/", "_")
	return strings.ReplaceAll(base, ":", "_")
}
