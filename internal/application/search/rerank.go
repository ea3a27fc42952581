package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
)

const rerankSnippetLen = 400

type rerankItem struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// rerank 让 LLM 对候选重排序并截断到 limit
// 调用或解析失败时退回混合排序
func (p *Pipeline) rerank(ctx context.Context, query string, results []*memory.SearchResult, limit int) []*memory.SearchResult {
	payload, err := p.chat.Chat(ctx, "rerank", rerankSystemPrompt, rerankUserPrompt(query, results))
	if err != nil {
		logger.Warn(ctx, "rerank failed, keeping hybrid order", "error", err.Error())
		return results[:limit]
	}

	scores, err := parseRerankPayload(payload, len(results))
	if err != nil {
		logger.Warn(ctx, "rerank payload unparseable, keeping hybrid order", "error", err.Error())
		return results[:limit]
	}

	for i, r := range results {
		r.RerankScore = scores[i]
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RerankScore > results[j].RerankScore
	})
	return results[:limit]
}

func rerankUserPrompt(query string, results []*memory.SearchResult) string {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n\nCandidates:\n")
	for i, r := range results {
		snippet := r.Content
		if len(snippet) > rerankSnippetLen {
			snippet = snippet[:rerankSnippetLen]
		}
		fmt.Fprintf(&b, "[%d] %s\n", i, snippet)
	}
	return b.String()
}

// parseRerankPayload 解析 [{index,score}] 数组，未提及的候选得 0 分
func parseRerankPayload(payload string, count int) ([]float64, error) {
	startIdx := strings.Index(payload, "[")
	endIdx := strings.LastIndex(payload, "]")
	if startIdx < 0 || endIdx <= startIdx {
		return nil, fmt.Errorf("no JSON array in payload")
	}

	var items []rerankItem
	if err := json.Unmarshal([]byte(payload[startIdx:endIdx+1]), &items); err != nil {
		return nil, fmt.Errorf("failed to decode rerank payload: %w", err)
	}

	scores := make([]float64, count)
	for _, item := range items {
		if item.Index >= 0 && item.Index < count {
			scores[item.Index] = item.Score
		}
	}
	return scores, nil
}
