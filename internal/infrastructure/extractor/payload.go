// Package extractor 提供记忆抽取客户端
package extractor

import (
	"strings"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

const (
	entityPrefix   = "ENTITY|"
	relationPrefix = "REL|"
	memoriesMarker = "MEMORIES:"
)

// ParsePayload 宽松解析抽取器输出
// 结构检查不通过的行直接丢弃，其余行并入 memoriesText
func ParsePayload(payload string) *memory.Extraction {
	out := &memory.Extraction{}
	var memoryLines []string

	for _, line := range strings.Split(payload, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == memoriesMarker {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, entityPrefix):
			if ent, ok := parseEntityLine(trimmed); ok {
				out.Entities = append(out.Entities, ent)
			}
		case strings.HasPrefix(trimmed, relationPrefix):
			if rel, ok := parseRelationLine(trimmed); ok {
				out.Relations = append(out.Relations, rel)
			}
		default:
			memoryLines = append(memoryLines, trimmed)
		}
	}

	out.MemoriesText = strings.Join(memoryLines, "\n")
	return out
}

func parseEntityLine(line string) (memory.ExtractedEntity, bool) {
	parts := strings.Split(strings.TrimPrefix(line, entityPrefix), "|")
	if len(parts) < 2 {
		return memory.ExtractedEntity{}, false
	}
	name := strings.TrimSpace(parts[0])
	entityType := strings.TrimSpace(parts[1])
	if name == "" || entityType == "" {
		return memory.ExtractedEntity{}, false
	}
	summary := ""
	if len(parts) >= 3 {
		summary = strings.TrimSpace(strings.Join(parts[2:], "|"))
	}
	return memory.ExtractedEntity{Name: name, Type: entityType, Summary: summary}, true
}

func parseRelationLine(line string) (memory.ExtractedRelation, bool) {
	parts := strings.Split(strings.TrimPrefix(line, relationPrefix), "|")
	if len(parts) < 3 {
		return memory.ExtractedRelation{}, false
	}
	source := strings.TrimSpace(parts[0])
	relation := strings.TrimSpace(parts[1])
	target := strings.TrimSpace(parts[2])
	if source == "" || relation == "" || target == "" {
		return memory.ExtractedRelation{}, false
	}
	date := ""
	if len(parts) >= 4 {
		date = strings.TrimSpace(parts[3])
	}
	return memory.ExtractedRelation{Source: source, Relation: relation, Target: target, Date: date}, true
}
