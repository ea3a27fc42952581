package ingest

import (
	"context"
	"strings"

	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
)

const profileSystemPrompt = `You maintain a long-term profile of the user from memory statements.

Given the statements below, output durable facts about the user, one per line.
Keep only stable traits, preferences, relationships and circumstances.
Skip one-off events and anything uncertain. Output nothing else.`

const (
	minProfileLineLen = 4
	maxProfileLineLen = 300
)

// buildProfile 基于本批 memoriesText 生成画像行
// 失败只记日志，画像缺席不阻塞摄取
func (o *Orchestrator) buildProfile(ctx context.Context, memoriesAll []string) []string {
	if len(memoriesAll) == 0 {
		return nil
	}

	payload, err := o.chat.Chat(ctx, "profile", profileSystemPrompt, strings.Join(memoriesAll, "\n"))
	if err != nil {
		logger.Warn(ctx, "profile build failed", "error", err.Error())
		return nil
	}
	return parseProfileLines(payload)
}

// parseProfileLines 保留 4~300 字符的非列表标记行
func parseProfileLines(payload string) []string {
	var out []string
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimSpace(line)
		if len(line) < minProfileLineLen || len(line) > maxProfileLineLen {
			continue
		}
		out = append(out, line)
	}
	return out
}
