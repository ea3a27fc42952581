package dto

import (
	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

// MessageDTO 单条对话消息
type MessageDTO struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// IngestRequest 写入请求
type IngestRequest struct {
	ContainerTag string       `json:"containerTag" binding:"required"`
	SessionID    string       `json:"sessionId" binding:"required"`
	Messages     []MessageDTO `json:"messages" binding:"required"`
	Date         string       `json:"date"`
}

// IngestResponse 写入响应
type IngestResponse struct {
	DocumentIDs []string `json:"documentIds"`
}

// SearchRequest 检索请求
type SearchRequest struct {
	ContainerTag string `json:"containerTag" binding:"required"`
	Query        string `json:"query" binding:"required"`
	Limit        int    `json:"limit"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Results []*memory.SearchResult `json:"results"`
}

// StoreRequest 自由文本写入请求
type StoreRequest struct {
	ContainerTag string `json:"containerTag" binding:"required"`
	Text         string `json:"text" binding:"required"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	OK       bool   `json:"ok"`
	Provider string `json:"provider"`
}

// ContainersResponse 容器列表响应
type ContainersResponse struct {
	Containers []string `json:"containers"`
}

// MemoryItem 已存储 chunk 的对外视图
type MemoryItem struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	SessionID string `json:"sessionId"`
	Date      string `json:"date,omitempty"`
}

// MemoriesResponse chunk 列表响应
type MemoriesResponse struct {
	Memories []MemoryItem `json:"memories"`
}

// GraphResponse 关系检索响应
type GraphResponse struct {
	Relations []*memory.Relationship `json:"relations"`
}

// GraphDeepResponse 图遍历响应
type GraphDeepResponse struct {
	Entities      []*memory.Entity       `json:"entities"`
	Relationships []*memory.Relationship `json:"relationships"`
}

// DedupeResponse 图去重响应
type DedupeResponse struct {
	OK             bool `json:"ok"`
	GarbageDeleted int  `json:"garbageDeleted"`
	ClustersMerged int  `json:"clustersMerged"`
	EdgesDeleted   int  `json:"edgesDeleted"`
	EdgesBefore    int  `json:"edgesBefore"`
	EdgesAfter     int  `json:"edgesAfter"`
}

// ToSessions 转换写入请求为领域会话
func (r *IngestRequest) ToSessions() []*memory.Session {
	turns := make([]memory.Turn, 0, len(r.Messages))
	for _, m := range r.Messages {
		turns = append(turns, memory.Turn{Role: m.Role, Content: m.Content})
	}
	return []*memory.Session{{
		SessionID: r.SessionID,
		Turns:     turns,
		Date:      r.Date,
	}}
}
