// Package hybrid 提供向量与 BM25 融合检索引擎
package hybrid

import (
	"math"
	"sort"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

const (
	vectorWeight = 0.7
	bm25Weight   = 0.3
)

// Engine 单容器的块存储与融合检索
type Engine struct {
	chunks map[string]*memory.Chunk
	index  *bm25Index
}

// NewEngine 创建检索引擎
func NewEngine() *Engine {
	return &Engine{
		chunks: make(map[string]*memory.Chunk),
		index:  newBM25Index(),
	}
}

// AddChunks 按 ID 幂等写入块
func (e *Engine) AddChunks(chunks []*memory.Chunk) {
	for _, c := range chunks {
		if c == nil || c.ID == "" {
			continue
		}
		cc := *c
		e.chunks[cc.ID] = &cc
		e.index.Add(cc.ID, cc.Content)
	}
}

// Search 融合检索，返回按分数排序的前 k 条
func (e *Engine) Search(queryEmbedding []float32, rawQuery string, k int) []*memory.SearchResult {
	if len(e.chunks) == 0 || k <= 0 {
		return nil
	}

	queryTokens := Tokenize(rawQuery)

	type scored struct {
		chunk  *memory.Chunk
		vector float64
		bm25   float64
	}

	pool := make([]scored, 0, len(e.chunks))
	for _, c := range e.chunks {
		pool = append(pool, scored{
			chunk:  c,
			vector: Cosine(queryEmbedding, c.Embedding),
			bm25:   e.index.Score(queryTokens, c.ID),
		})
	}

	vecs := make([]float64, len(pool))
	bms := make([]float64, len(pool))
	for i, s := range pool {
		vecs[i] = s.vector
		bms[i] = s.bm25
	}
	normVec := minMaxNormalize(vecs)
	normBM := minMaxNormalize(bms)

	results := make([]*memory.SearchResult, len(pool))
	for i, s := range pool {
		results[i] = &memory.SearchResult{
			Type:        memory.ResultChunk,
			Content:     s.chunk.Content,
			Score:       vectorWeight*normVec[i] + bm25Weight*normBM[i],
			VectorScore: normVec[i],
			BM25Score:   normBM[i],
			SessionID:   s.chunk.SessionID,
			ChunkIndex:  s.chunk.ChunkIndex,
			ChunkID:     s.chunk.ID,
			Date:        s.chunk.Date,
		}
	}

	SortResults(results)

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// ChunksBySession 返回会话的全部块
func (e *Engine) ChunksBySession(sessionID string) []*memory.Chunk {
	var out []*memory.Chunk
	for _, c := range e.chunks {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

// ChunkByID 按 ID 查询块
func (e *Engine) ChunkByID(id string) *memory.Chunk {
	return e.chunks[id]
}

// HasData 是否持有任何块
func (e *Engine) HasData() bool {
	return len(e.chunks) > 0
}

// Count 块数量
func (e *Engine) Count() int {
	return len(e.chunks)
}

// Clear 清空引擎
func (e *Engine) Clear() {
	e.chunks = make(map[string]*memory.Chunk)
	e.index = newBM25Index()
}

// State 导出全部块用于快照
func (e *Engine) State() []*memory.Chunk {
	out := make([]*memory.Chunk, 0, len(e.chunks))
	for _, c := range e.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore 从快照重建引擎，倒排索引即时重建
func (e *Engine) Restore(chunks []*memory.Chunk) {
	e.Clear()
	e.AddChunks(chunks)
}

// Cosine 余弦相似度，零向量返回 0
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// minMaxNormalize 将分数线性映射到 [0,1]，全相等时归零
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

// SortResults 按分数降序，平分时先比向量分再比块 ID
func SortResults(results []*memory.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].VectorScore != results[j].VectorScore {
			return results[i].VectorScore > results[j].VectorScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}
