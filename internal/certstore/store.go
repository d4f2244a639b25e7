package certstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/proxyops/certsyncd/internal/secrets"
	"github.com/proxyops/certsyncd/pkg/common/iface"
)

const (
	certFileExt = ".pem"
	keyFileExt  = ".key"

	certFileMode os.FileMode = 0o644
	keyFileMode  os.FileMode = 0o600

	// fingerprintSep separates certificate and key material in the hash input
	// so reordering cannot mask a change.
	fingerprintSep = "\x00"
)

// Outcome of a WriteIfChanged call.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeWritten
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeWritten:
		return "written"
	default:
		return "failed"
	}
}

// WriteResult reports what WriteIfChanged did for one record.
type WriteResult struct {
	Outcome Outcome
	Reason  string
	Paths   []string
}

// entry is the in-memory state kept per file base.
type entry struct {
	fingerprint string
	paths       []string
	writtenAt   time.Time
}

// Store owns the certificate directory. The fingerprint map always matches
// the bytes on disk: it is only updated after every rename of a write has
// succeeded. Store methods are safe for concurrent use, though in practice
// the scheduler guarantees a single writer.
type Store struct {
	dir string
	log iface.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a store over dir. Call Rehydrate before the first cycle to pick
// up material written by a previous process.
func New(dir string, log iface.Logger) *Store {
	return &Store{
		dir:     dir,
		log:     log,
		entries: make(map[string]entry),
	}
}

// Rehydrate rebuilds the fingerprint state by hashing existing files, so an
// unchanged certificate does not get rewritten (and the proxy reloaded) just
// because the daemon restarted.
func (s *Store) Rehydrate() error {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read certificate directory %s: %w", s.dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, certFileExt) {
			continue
		}
		base := strings.TrimSuffix(name, certFileExt)
		certPath := filepath.Join(s.dir, name)
		keyPath := filepath.Join(s.dir, base+keyFileExt)

		certData, err := os.ReadFile(certPath)
		if err != nil {
			s.log.Warn("skipping unreadable certificate %s: %v", certPath, err)
			continue
		}
		keyData, err := os.ReadFile(keyPath)
		if err != nil {
			// A cert without its key is not managed material.
			s.log.Warn("no private key for %s, not tracking", certPath)
			continue
		}

		info, _ := de.Info()
		ent := entry{
			fingerprint: fingerprint(certData, keyData),
			paths:       []string{certPath, keyPath},
		}
		if info != nil {
			ent.writtenAt = info.ModTime()
		}
		s.entries[base] = ent
	}

	s.log.Info("rehydrated %d certificates from %s", len(s.entries), s.dir)
	return nil
}

// Fingerprint returns the tracked content hash for a file base, if any. It
// never touches disk.
func (s *Store) Fingerprint(base string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[base]
	return ent.fingerprint, ok
}

// Count returns the number of certificates currently tracked.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// WriteIfChanged compares the record against the tracked fingerprint and, on
// a mismatch, replaces the certificate and key files atomically. The
// certificate file carries the chain appended, which is the layout the proxy
// consumes. No I/O happens when the payload is unchanged.
func (s *Store) WriteIfChanged(ctx context.Context, rec *secrets.Record) WriteResult {
	if err := ctx.Err(); err != nil {
		return WriteResult{Outcome: OutcomeFailed, Reason: fmt.Sprintf("cycle cancelled: %v", err)}
	}

	base := rec.FileBase()
	certData := []byte(rec.CertificatePEM)
	if rec.ChainPEM != "" {
		certData = append(certData, '\n')
		certData = append(certData, []byte(rec.ChainPEM)...)
	}
	keyData := []byte(rec.PrivateKeyPEM)
	fp := fingerprint(certData, keyData)

	s.mu.Lock()
	current, tracked := s.entries[base]
	s.mu.Unlock()
	if tracked && current.fingerprint == fp {
		return WriteResult{Outcome: OutcomeUnchanged, Paths: current.paths}
	}

	certPath := filepath.Join(s.dir, base+certFileExt)
	keyPath := filepath.Join(s.dir, base+keyFileExt)

	// Stage both files before renaming either, so a failure on the second
	// write leaves the previous pair fully intact.
	certTmp, err := stageFile(certPath, certData, certFileMode)
	if err != nil {
		return WriteResult{Outcome: OutcomeFailed, Reason: fmt.Sprintf("stage certificate: %v", err)}
	}
	keyTmp, err := stageFile(keyPath, keyData, keyFileMode)
	if err != nil {
		_ = os.Remove(certTmp)
		return WriteResult{Outcome: OutcomeFailed, Reason: fmt.Sprintf("stage private key: %v", err)}
	}

	if err := os.Rename(certTmp, certPath); err != nil {
		_ = os.Remove(certTmp)
		_ = os.Remove(keyTmp)
		return WriteResult{Outcome: OutcomeFailed, Reason: fmt.Sprintf("replace certificate: %v", err)}
	}
	if err := os.Rename(keyTmp, keyPath); err != nil {
		_ = os.Remove(keyTmp)
		return WriteResult{Outcome: OutcomeFailed, Reason: fmt.Sprintf("replace private key: %v", err)}
	}

	// Rename does not preserve permissions on every filesystem.
	_ = os.Chmod(certPath, certFileMode)
	_ = os.Chmod(keyPath, keyFileMode)

	paths := []string{certPath, keyPath}
	s.mu.Lock()
	s.entries[base] = entry{fingerprint: fp, paths: paths, writtenAt: time.Now()}
	s.mu.Unlock()

	s.log.Info("wrote certificate %s (%s, %s)", rec.Name, certPath, keyPath)
	return WriteResult{Outcome: OutcomeWritten, Paths: paths}
}

// stageFile writes data to a temporary file in the same directory as path and
// returns the temporary name, ready to be renamed into place.
func stageFile(path string, data []byte, perm os.FileMode) (string, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return "", err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Chmod(perm); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

func fingerprint(certData, keyData []byte) string {
	h := sha256.New()
	h.Write(certData)
	h.Write([]byte(fingerprintSep))
	h.Write(keyData)
	return hex.EncodeToString(h.Sum(nil))
}
