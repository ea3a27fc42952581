package search

import (
	"context"
	"strings"

	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
)

const maxRewriteLen = 500

// rewriteQuery 让 LLM 扩写查询，失败或超长时退回原查询
func (p *Pipeline) rewriteQuery(ctx context.Context, query string) string {
	payload, err := p.chat.Chat(ctx, "rewrite", rewriteSystemPrompt, query)
	if err != nil {
		logger.Warn(ctx, "query rewrite failed, using original", "error", err.Error())
		return query
	}

	rewritten := firstLine(payload)
	if rewritten == "" || len(rewritten) > maxRewriteLen {
		return query
	}
	return rewritten
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
