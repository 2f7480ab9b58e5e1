package vector

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arogyahq/arogya/types"
)

// Chunk is one row of the on-disk index.
type Chunk struct {
	ID        string `gorm:"column:id;primaryKey"`
	Source    string `gorm:"column:source"`
	Topic     string `gorm:"column:topic"`
	ChunkText string `gorm:"column:chunk_text"`
	Embedding string `gorm:"column:embedding"` // JSON array of float64
}

// TableName maps Chunk to the chunks table.
func (Chunk) TableName() string { return "chunks" }

type entry struct {
	chunk     types.RetrievedChunk
	embedding []float64
}

// Index holds the full corpus in memory for brute-force cosine search.
// Loading happens once; a corrupt or unreadable file yields an empty index
// and a warning instead of an error.
type Index struct {
	entries []entry
	logger  *zap.Logger
}

// OpenIndex loads the sqlite index at path. Rows with malformed embeddings
// are skipped individually; a file that cannot be opened at all produces an
// empty index.
func OpenIndex(path string, logger *zap.Logger) *Index {
	logger = logger.With(zap.String("component", "vector"))
	idx := &Index{logger: logger}

	db, err := gorm.Open(sqlite.Open(path+"?mode=ro"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Warn("vector index unavailable, retrieval degraded to empty",
			zap.String("path", path), zap.Error(err))
		return idx
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	var rows []Chunk
	if err := db.Find(&rows).Error; err != nil {
		logger.Warn("vector index unreadable, retrieval degraded to empty",
			zap.String("path", path), zap.Error(err))
		return idx
	}

	skipped := 0
	for _, row := range rows {
		var vec []float64
		if err := json.Unmarshal([]byte(row.Embedding), &vec); err != nil || len(vec) == 0 {
			skipped++
			continue
		}
		idx.entries = append(idx.entries, entry{
			chunk: types.RetrievedChunk{
				ID:     row.ID,
				Source: row.Source,
				Topic:  row.Topic,
				Chunk:  row.ChunkText,
			},
			embedding: vec,
		})
	}
	if skipped > 0 {
		logger.Warn("skipped chunks with malformed embeddings", zap.Int("skipped", skipped))
	}
	logger.Info("vector index loaded",
		zap.String("path", path), zap.Int("chunks", len(idx.entries)))
	return idx
}

// NewIndexFromChunks builds an in-memory index directly, embedding each
// chunk's text. Used by tests and the seed tooling.
func NewIndexFromChunks(chunks []types.RetrievedChunk, logger *zap.Logger) *Index {
	idx := &Index{logger: logger.With(zap.String("component", "vector"))}
	for _, c := range chunks {
		idx.entries = append(idx.entries, entry{chunk: c, embedding: Embed(c.Chunk)})
	}
	return idx
}

// Len reports the number of searchable chunks.
func (idx *Index) Len() int { return len(idx.entries) }

// Search returns the top-k chunks by cosine similarity to the query.
func (idx *Index) Search(query string, k int) []types.RetrievedChunk {
	if k <= 0 || len(idx.entries) == 0 {
		return nil
	}
	qvec := Embed(query)

	type scored struct {
		chunk types.RetrievedChunk
		score float64
	}
	results := make([]scored, 0, len(idx.entries))
	for _, e := range idx.entries {
		results = append(results, scored{chunk: e.chunk, score: Cosine(qvec, e.embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if k > len(results) {
		k = len(results)
	}
	out := make([]types.RetrievedChunk, 0, k)
	for _, r := range results[:k] {
		out = append(out, r.chunk)
	}
	return out
}

// WriteIndex persists chunks to a sqlite file, embedding each chunk's text.
// Used by the seed subcommand.
func WriteIndex(path string, chunks []types.RetrievedChunk) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open index for write: %w", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}
	if err := db.AutoMigrate(&Chunk{}); err != nil {
		return fmt.Errorf("migrate index schema: %w", err)
	}
	for _, c := range chunks {
		vec, err := json.Marshal(Embed(c.Chunk))
		if err != nil {
			return err
		}
		row := Chunk{ID: c.ID, Source: c.Source, Topic: c.Topic, ChunkText: c.Chunk, Embedding: string(vec)}
		if err := db.Save(&row).Error; err != nil {
			return fmt.Errorf("write chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

var (
	sharedOnce sync.Once
	sharedIdx  *Index
)

// Shared returns the process-wide index, loading it on first call. Later
// calls ignore the arguments and return the already-loaded index.
func Shared(path string, logger *zap.Logger) *Index {
	sharedOnce.Do(func() {
		sharedIdx = OpenIndex(path, logger)
	})
	return sharedIdx
}
