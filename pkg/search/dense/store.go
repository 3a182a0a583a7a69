// Package dense implements the semantic side of hybrid retrieval: an
// embedded sqlite-vec L2 index over unit embeddings, with an integer
// position to unit-id mapping and generation files swapped by an atomically
// renamed pointer.
package dense

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"statutelink/pkg/errs"
	"statutelink/pkg/models"
	"statutelink/pkg/search"
)

func init() {
	sqlite_vec.Auto()
}

// manifest describes one dense index generation on disk.
type manifest struct {
	Generation       string `json:"generation"`
	Dimension        int    `json:"dimension"`
	Model            string `json:"model"`
	TotalVectors     int    `json:"total_vectors"`
	FailedEmbeddings int    `json:"failed_embeddings"`
	CreatedAt        string `json:"created_at"`
}

// Store is one open generation of the dense index.
type Store struct {
	db        *sql.DB
	dim       int
	gen       string
	dir       string
}

const pointerFile = "current"

func dbSchema(dim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS units (
    pos INTEGER PRIMARY KEY,
    unit_id TEXT NOT NULL UNIQUE,
    failed INTEGER NOT NULL DEFAULT 0
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_units USING vec0(
    pos INTEGER PRIMARY KEY,
    embedding float[%d]
);
`, dim)
}

// Open loads the generation the pointer file names. The stored dimension is
// validated against the expected one; a mismatch is fatal.
func Open(dir string, dim int) (*Store, error) {
	gen, err := readPointer(dir)
	if err != nil {
		return nil, err
	}
	return openGeneration(dir, gen, dim, true)
}

func openGeneration(dir, gen string, dim int, validate bool) (*Store, error) {
	if validate {
		m, err := readManifest(dir, gen)
		if err != nil {
			return nil, err
		}
		if m.Dimension != dim {
			return nil, fmt.Errorf("dense index dimension mismatch: index has %d, configured %d", m.Dimension, dim)
		}
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("dense_%s.db", gen))
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening dense index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging dense index: %w", err)
	}
	if _, err := db.Exec(dbSchema(dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating dense schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, dim: dim, gen: gen, dir: dir}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Generation returns the loaded generation id.
func (s *Store) Generation() string { return s.gen }

// Dimension returns the vector dimension of this generation.
func (s *Store) Dimension() int { return s.dim }

// IsHealthy reports whether the index file still answers queries.
func (s *Store) IsHealthy() bool {
	return s.db.Ping() == nil
}

// SearchVec runs a KNN query over the live generation, excluding units whose
// embedding failed at build time. L2 distance is converted to similarity via
// 1/(1+d).
func (s *Store) SearchVec(ctx context.Context, queryVec []float32, k int) ([]search.Hit, error) {
	if len(queryVec) != s.dim {
		return nil, errs.Ef(errs.KindInvariant, "query vector dimension %d, index dimension %d", len(queryVec), s.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.unit_id, v.distance
		FROM vec_units v
		JOIN units u ON u.pos = v.pos
		WHERE v.embedding MATCH ? AND k = ? AND u.failed = 0
		ORDER BY v.distance`,
		serializeFloat32(queryVec), k)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.E(errs.KindTimeout, err)
		}
		return nil, errs.E(errs.KindIndexUnavailable, fmt.Errorf("dense search failed: %w", err))
	}
	defer rows.Close()

	var hits []search.Hit
	for rows.Next() {
		var unitID string
		var distance float64
		if err := rows.Scan(&unitID, &distance); err != nil {
			return nil, errs.E(errs.KindIndexUnavailable, err)
		}
		hits = append(hits, search.Hit{
			UnitID: unitID,
			Score:  1.0 / (1.0 + distance),
			Source: search.SourceDense,
		})
	}
	return hits, rows.Err()
}

// Searcher adapts a Store plus an Embedder into the retrieval-side contract.
// Query embedding failures surface as EmbeddingFailed so the retriever can
// degrade to lexical-only.
type Searcher struct {
	Store    *Store
	Embedder Embedder
}

func (s *Searcher) Search(ctx context.Context, query string, k int) ([]search.Hit, error) {
	vec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Store.SearchVec(ctx, vec, k)
}

// Builder accumulates one new generation, then publishes it with an atomic
// pointer swap. Readers of the previous generation are unaffected.
type Builder struct {
	store      *Store
	embedder   Embedder
	maxChars   int
	nextPos    int64
	failed     int
}

// NewBuilder creates a fresh generation in dir. It does not disturb the
// currently published generation.
func NewBuilder(dir string, embedder Embedder, maxChars int) (*Builder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dense index directory: %w", err)
	}

	gen := time.Now().UTC().Format("20060102150405")
	store, err := openGeneration(dir, gen, embedder.Dimension(), false)
	if err != nil {
		return nil, err
	}
	return &Builder{store: store, embedder: embedder, maxChars: maxChars}, nil
}

// Add embeds one unit and appends it at the next integer position. A failed
// embedding is recorded as a zero vector with the failed flag set so search
// can exclude it; the build continues.
func (b *Builder) Add(ctx context.Context, unit models.IndexUnit) error {
	text := unit.Title + " " + unit.Text
	if b.maxChars > 0 && len(text) > b.maxChars {
		text = text[:b.maxChars]
	}

	vec, err := b.embedder.Embed(ctx, text)
	failed := 0
	if err != nil {
		if !errs.Is(err, errs.KindEmbeddingFailed) && !errs.Is(err, errs.KindTimeout) {
			return err
		}
		log.Printf("[DENSE] embedding failed for %s: %v", unit.UnitID, err)
		vec = make([]float32, b.embedder.Dimension())
		failed = 1
		b.failed++
	}

	pos := b.nextPos
	b.nextPos++

	if _, err := b.store.db.ExecContext(ctx,
		"INSERT INTO units (pos, unit_id, failed) VALUES (?, ?, ?)", pos, unit.UnitID, failed); err != nil {
		return fmt.Errorf("inserting unit mapping for %s: %w", unit.UnitID, err)
	}
	if _, err := b.store.db.ExecContext(ctx,
		"INSERT INTO vec_units (pos, embedding) VALUES (?, ?)", pos, serializeFloat32(vec)); err != nil {
		return fmt.Errorf("inserting embedding for %s: %w", unit.UnitID, err)
	}
	return nil
}

// Publish writes the manifest and atomically repoints the generation pointer.
func (b *Builder) Publish(model string) (*Store, error) {
	m := manifest{
		Generation:       b.store.gen,
		Dimension:        b.store.dim,
		Model:            model,
		TotalVectors:     int(b.nextPos),
		FailedEmbeddings: b.failed,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeManifest(b.store.dir, b.store.gen, &m); err != nil {
		return nil, err
	}
	if err := writePointer(b.store.dir, b.store.gen); err != nil {
		return nil, err
	}
	log.Printf("[DENSE] published generation %s: %d vectors, %d failed", b.store.gen, m.TotalVectors, m.FailedEmbeddings)
	return b.store, nil
}

func manifestPath(dir, gen string) string {
	return filepath.Join(dir, fmt.Sprintf("dense_%s_manifest.json", gen))
}

func readManifest(dir, gen string) (*manifest, error) {
	data, err := os.ReadFile(manifestPath(dir, gen))
	if err != nil {
		return nil, fmt.Errorf("reading dense manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing dense manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(dir, gen string, m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(manifestPath(dir, gen), data, 0o644)
}

func readPointer(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, pointerFile))
	if err != nil {
		return "", fmt.Errorf("no published dense index generation: %w", err)
	}
	return string(trimNewline(data)), nil
}

// writePointer publishes via write-temp-then-rename so readers never observe
// a half-written pointer.
func writePointer(dir, gen string) error {
	tmp := filepath.Join(dir, pointerFile+".tmp")
	if err := os.WriteFile(tmp, []byte(gen+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, pointerFile))
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// serializeFloat32 packs a vector into the little-endian blob sqlite-vec
// expects.
func serializeFloat32(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
