// Package chunker 提供寻找边界的文本分块
package chunker

import (
	"strings"
)

const (
	DefaultChunkSize = 1600
	DefaultOverlap   = 320
)

// Options 分块参数
type Options struct {
	ChunkSize int
	Overlap   int
}

// DefaultOptions 返回默认分块参数
func DefaultOptions() Options {
	return Options{
		ChunkSize: DefaultChunkSize,
		Overlap:   DefaultOverlap,
	}
}

// Chunk 按边界优先级切分文本
// 边界优先级：". " >= 半窗口处、换行、空格、硬切
func Chunk(text string, opts Options) []string {
	if opts.ChunkSize <= 0 {
		opts = DefaultOptions()
	}

	if len(text) <= opts.ChunkSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + opts.ChunkSize
		if end >= len(text) {
			if piece := strings.TrimSpace(text[start:]); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		end = seekBoundary(text, start, end, opts.ChunkSize)

		if piece := strings.TrimSpace(text[start : end+1]); piece != "" {
			chunks = append(chunks, piece)
		}

		next := end + 1 - opts.Overlap
		if next <= start {
			next = end + 1
		}
		start = next
	}

	return chunks
}

// seekBoundary 在 [start, end) 内回退寻找切分点：". " 须位于窗口后半段
// （不早于 chunkSize/2），换行与空格可落在窗口内任意位置，都没有则硬切
func seekBoundary(text string, start, end, chunkSize int) int {
	window := text[start:end]
	half := chunkSize / 2

	if idx := strings.LastIndex(window, ". "); idx >= half {
		return start + idx
	}
	if idx := strings.LastIndexByte(window, '\n'); idx > 0 {
		return start + idx
	}
	if idx := strings.LastIndexByte(window, ' '); idx > 0 {
		return start + idx
	}
	return end - 1
}
