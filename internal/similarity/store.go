// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

package similarity

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TrevanC/MTGrec/internal/logging"
)

// ErrCacheMiss is returned when no cache exists for the requested
// fingerprint. A fingerprint mismatch is a cache miss, never a silent use of
// stale data.
var ErrCacheMiss = errors.New("similarity cache miss")

// CacheMetadata describes a persisted neighbor cache.
type CacheMetadata struct {
	// Fingerprint identifies the matrix bundle the cache was fitted on.
	Fingerprint string

	// SavedAt is when the cache was written.
	SavedAt time.Time

	// CardCount is the number of cards with neighbor lists.
	CardCount int

	// Checksum is the SHA-256 checksum of the uncompressed payload.
	Checksum string

	// SizeBytes is the compressed payload size.
	SizeBytes int64
}

// storedFile is the on-disk format.
type storedFile struct {
	Metadata       CacheMetadata
	CompressedData []byte
}

// payload is the gob-encoded model state.
type payload struct {
	Config      Config
	Fingerprint string
	Neighbors   map[string][]Neighbor
}

// Store persists fitted models keyed by bundle fingerprint. The cache is a
// pure derived artifact, safe to delete and regenerate at any time.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// cachePath derives the file name from the fingerprint.
func (s *Store) cachePath(fingerprint string) string {
	return filepath.Join(s.dir, "similarity_"+shortFingerprint(fingerprint)+".gob.gz")
}

// Save persists a fitted model.
func (s *Store) Save(m *Model) error {
	if !m.fitted {
		return ErrNotFitted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload{
		Config:      m.cfg,
		Fingerprint: m.fingerprint,
		Neighbors:   m.neighbors,
	}); err != nil {
		return fmt.Errorf("encode similarity cache: %w", err)
	}
	raw := buf.Bytes()

	hash := sha256.Sum256(raw)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return fmt.Errorf("compress similarity cache: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	sf := storedFile{
		Metadata: CacheMetadata{
			Fingerprint: m.fingerprint,
			SavedAt:     time.Now(),
			CardCount:   len(m.neighbors),
			Checksum:    hex.EncodeToString(hash[:]),
			SizeBytes:   int64(compressed.Len()),
		},
		CompressedData: compressed.Bytes(),
	}

	path := s.cachePath(m.fingerprint)
	f, err := os.Create(path) //nolint:gosec // path is derived from the fingerprint, not user input
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := gob.NewEncoder(f).Encode(sf); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	log := logging.With("similarity")
	log.Info().
		Str("path", path).
		Int("cards", sf.Metadata.CardCount).
		Int64("bytes", sf.Metadata.SizeBytes).
		Msg("similarity cache saved")

	return nil
}

// Load reads the cache for the given bundle fingerprint. Missing files,
// fingerprint mismatches and corrupt payloads all surface as ErrCacheMiss so
// the caller recomputes instead of serving stale neighbors.
func (s *Store) Load(fingerprint string) (*Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.cachePath(fingerprint)
	f, err := os.Open(path) //nolint:gosec // path is derived from the fingerprint, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no cache at %s", ErrCacheMiss, path)
		}
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("%w: corrupt cache file: %v", ErrCacheMiss, err)
	}

	if sf.Metadata.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: fingerprint mismatch (cached %s, want %s)",
			ErrCacheMiss, shortFingerprint(sf.Metadata.Fingerprint), shortFingerprint(fingerprint))
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt compression: %v", ErrCacheMiss, err)
	}
	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCacheMiss, err)
	}
	if err := gzr.Close(); err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCacheMiss, err)
	}

	hash := sha256.Sum256(raw)
	if hex.EncodeToString(hash[:]) != sf.Metadata.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCacheMiss)
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrCacheMiss, err)
	}
	if p.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: payload fingerprint mismatch", ErrCacheMiss)
	}

	log := logging.With("similarity")
	log.Info().
		Str("path", path).
		Int("cards", len(p.Neighbors)).
		Msg("similarity cache loaded")

	return &Model{
		cfg:         p.Config,
		neighbors:   p.Neighbors,
		fingerprint: p.Fingerprint,
		fitted:      true,
	}, nil
}
