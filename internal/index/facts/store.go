// Package facts 提供原子事实存储与余弦检索
package facts

import (
	"sort"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/internal/index/hybrid"
)

// ScoredFact 带分数的事实
type ScoredFact struct {
	Fact  *memory.Fact
	Score float64
}

// Store 单容器的原子事实存储
type Store struct {
	facts map[string]*memory.Fact
}

// NewStore 创建事实存储
func NewStore() *Store {
	return &Store{facts: make(map[string]*memory.Fact)}
}

// AddFacts 按 ID 幂等写入事实
func (s *Store) AddFacts(facts []*memory.Fact) {
	for _, f := range facts {
		if f == nil || f.ID == "" {
			continue
		}
		ff := *f
		s.facts[ff.ID] = &ff
	}
}

// Search 余弦检索，返回按分数降序的前 limit 条
func (s *Store) Search(queryEmbedding []float32, limit int) []ScoredFact {
	if len(s.facts) == 0 || limit <= 0 {
		return nil
	}

	scored := make([]ScoredFact, 0, len(s.facts))
	for _, f := range s.facts {
		scored = append(scored, ScoredFact{
			Fact:  f,
			Score: hybrid.Cosine(queryEmbedding, f.Embedding),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Fact.ID < scored[j].Fact.ID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Count 事实数量
func (s *Store) Count() int {
	return len(s.facts)
}

// HasData 是否持有任何事实
func (s *Store) HasData() bool {
	return len(s.facts) > 0
}

// Clear 清空存储
func (s *Store) Clear() {
	s.facts = make(map[string]*memory.Fact)
}

// State 导出全部事实用于快照
func (s *Store) State() []*memory.Fact {
	out := make([]*memory.Fact, 0, len(s.facts))
	for _, f := range s.facts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore 从快照重建存储
func (s *Store) Restore(facts []*memory.Fact) {
	s.Clear()
	s.AddFacts(facts)
}
