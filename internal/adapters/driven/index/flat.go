// Package index provides the on-disk flat vector index.
package index

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/overtone-labs/overtone-core/internal/core/domain"
	"github.com/overtone-labs/overtone-core/internal/core/ports/driven"
)

// File format: header followed by a dense little-endian float32 slab of
// count*dimension values. Vector N occupies the Nth dimension-sized stripe,
// so ordinal IDs need no explicit storage.
const (
	fileMagic   = "OVIX"
	fileVersion = uint16(1)
)

// headerSize is magic(4) + version(2) + dimension(4) + count(8) + generation(8).
const headerSize = 4 + 2 + 4 + 8 + 8

// Verify interface compliance
var _ driven.VectorIndex = (*Flat)(nil)

// Flat is a brute-force inner-product index over pre-normalized vectors,
// held fully in memory and persisted as a single file. IDs are ordinal and
// never reused; there is no delete.
//
// Concurrency: in-process access is guarded by a RWMutex. Across processes
// the caller must serialize Add/Save under the index writer lock; Refresh
// lets read-only processes pick up newer persisted generations.
type Flat struct {
	mu         sync.RWMutex
	path       string
	dim        int
	vectors    []float32 // dense slab, len = count*dim
	generation uint64
	logger     *slog.Logger
}

// Open loads the index at path, creating an empty one if the file does not
// exist. An existing file with a different dimension is a fatal mismatch:
// it means the embedding model changed under a populated index.
func Open(path string, dimensions int, logger *slog.Logger) (*Flat, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("index dimensions must be positive, got %d", dimensions)
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := &Flat{
		path:   path,
		dim:    dimensions,
		logger: logger,
	}

	dim, count, generation, vectors, err := readIndexFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("no existing index file, starting empty", "path", path, "dimensions", dimensions)
	case err != nil:
		return nil, fmt.Errorf("failed to load index %s: %w", path, err)
	default:
		if dim != dimensions {
			return nil, fmt.Errorf("%w: index file has dimension %d, embedding model produces %d",
				domain.ErrDimensionMismatch, dim, dimensions)
		}
		f.vectors = vectors
		f.generation = generation
		logger.Info("loaded vector index", "path", path, "vectors", count, "generation", generation)
	}
	return f, nil
}

// Add appends vectors and returns their ordinal IDs.
func (f *Flat) Add(ctx context.Context, vectors [][]float32) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, len(vectors))
	start := int64(len(f.vectors) / f.dim)
	for i, v := range vectors {
		if len(v) != f.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index has %d",
				domain.ErrDimensionMismatch, i, len(v), f.dim)
		}
		ids[i] = start + int64(i)
	}
	for _, v := range vectors {
		f.vectors = append(f.vectors, v...)
	}
	return ids, nil
}

// Search returns the k best inner-product matches, score descending, with
// the tail padded by SearchNoMatch when fewer than k vectors exist.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]float64, []int64, error) {
	if k <= 0 {
		return nil, nil, fmt.Errorf("search k must be positive, got %d", k)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			domain.ErrDimensionMismatch, len(query), f.dim)
	}

	count := len(f.vectors) / f.dim
	type hit struct {
		id    int64
		score float64
	}
	hits := make([]hit, count)
	for i := 0; i < count; i++ {
		base := i * f.dim
		var dot float64
		for j := 0; j < f.dim; j++ {
			dot += float64(f.vectors[base+j]) * float64(query[j])
		}
		hits[i] = hit{id: int64(i), score: dot}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	scores := make([]float64, k)
	ids := make([]int64, k)
	for i := 0; i < k; i++ {
		if i < len(hits) {
			scores[i] = hits[i].score
			ids[i] = hits[i].id
		} else {
			ids[i] = driven.SearchNoMatch
		}
	}
	return scores, ids, nil
}

// Save persists the index atomically via a temp file rename, bumping the
// generation so readers detect the new snapshot.
func (f *Flat) Save(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	generation := f.generation + 1
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeIndexFile(tmp, f.dim, generation, f.vectors); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}

	f.generation = generation
	f.logger.Info("persisted vector index",
		"path", f.path,
		"vectors", len(f.vectors)/f.dim,
		"generation", generation,
	)
	return nil
}

// Refresh reloads the index if a newer generation has been persisted.
// A missing file is not an error; the in-memory state stands.
func (f *Flat) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dim, count, generation, vectors, err := readIndexFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to refresh index: %w", err)
	}
	if generation <= f.generation {
		return nil
	}
	if dim != f.dim {
		return fmt.Errorf("%w: persisted index has dimension %d, this reader expects %d",
			domain.ErrDimensionMismatch, dim, f.dim)
	}

	f.vectors = vectors
	f.generation = generation
	f.logger.Info("refreshed vector index", "vectors", count, "generation", generation)
	return nil
}

// Size returns the number of stored vectors
func (f *Flat) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int64(len(f.vectors) / f.dim)
}

// Dimensions returns the fixed vector dimension
func (f *Flat) Dimensions() int {
	return f.dim
}

func writeIndexFile(w io.Writer, dim int, generation uint64, vectors []float32) error {
	if _, err := w.Write([]byte(fileMagic)); err != nil {
		return err
	}
	header := []any{
		fileVersion,
		uint32(dim),
		uint64(len(vectors) / dim),
		generation,
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	buf := make([]byte, 4*len(vectors))
	for i, v := range vectors {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

func readIndexFile(path string) (dim int, count uint64, generation uint64, vectors []float32, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	if len(data) < headerSize {
		return 0, 0, 0, nil, fmt.Errorf("index file truncated: %d bytes", len(data))
	}
	if string(data[:4]) != fileMagic {
		return 0, 0, 0, nil, fmt.Errorf("not an index file: bad magic %q", data[:4])
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != fileVersion {
		return 0, 0, 0, nil, fmt.Errorf("unsupported index file version %d", version)
	}
	dim = int(binary.LittleEndian.Uint32(data[6:10]))
	count = binary.LittleEndian.Uint64(data[10:18])
	generation = binary.LittleEndian.Uint64(data[18:26])

	want := headerSize + int(count)*dim*4
	if len(data) != want {
		return 0, 0, 0, nil, fmt.Errorf("index file size mismatch: have %d bytes, want %d", len(data), want)
	}

	vectors = make([]float32, int(count)*dim)
	for i := range vectors {
		bits := binary.LittleEndian.Uint32(data[headerSize+i*4:])
		vectors[i] = math.Float32frombits(bits)
	}
	return dim, count, generation, vectors, nil
}
