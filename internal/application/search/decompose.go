package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/Jinstronda/jinstronda-memory/internal/container"
	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/internal/index/hybrid"
	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
)

const maxSubQueries = 5

var countingQueryRe = regexp.MustCompile(`(?i)\b(how many|count|number of|total)\b`)

func isCountingQuery(query string) bool {
	return countingQueryRe.MatchString(query)
}

// unionSubQueries 对计数类查询做子查询并集
// 子查询各自嵌入并检索，按 (sessionId, chunkIndex) 去重合并
func (p *Pipeline) unionSubQueries(ctx context.Context, c *container.Container, query string, results []*memory.SearchResult, k int) []*memory.SearchResult {
	subQueries := p.decompose(ctx, query)
	if len(subQueries) == 0 {
		return results
	}

	type unionKey struct {
		sessionID  string
		chunkIndex int
	}
	seen := make(map[unionKey]struct{}, len(results))
	for _, r := range results {
		seen[unionKey{r.SessionID, r.ChunkIndex}] = struct{}{}
	}

	for _, sub := range subQueries {
		emb, err := p.embedQuery(ctx, sub)
		if err != nil {
			logger.Warn(ctx, "sub-query embedding failed, skipping", "error", err.Error())
			continue
		}

		c.RLock()
		subResults := c.Hybrid.Search(emb, sub, k)
		c.RUnlock()

		for _, r := range subResults {
			key := unionKey{r.SessionID, r.ChunkIndex}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, r)
		}
	}

	hybrid.SortResults(results)
	return results
}

func (p *Pipeline) decompose(ctx context.Context, query string) []string {
	payload, err := p.chat.Chat(ctx, "decompose", decomposeSystemPrompt, query)
	if err != nil {
		logger.Warn(ctx, "query decomposition failed", "error", err.Error())
		return nil
	}

	var out []string
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxSubQueries {
			break
		}
	}
	return out
}
