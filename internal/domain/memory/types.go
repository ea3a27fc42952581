// Package memory 定义记忆领域模型
package memory

// Turn 会话中的一轮发言
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session 一次待摄取的会话
type Session struct {
	SessionID string `json:"sessionId"`
	Turns     []Turn `json:"turns"`
	Date      string `json:"date,omitempty"`
}

// Text 拼接会话全文
func (s *Session) Text() string {
	var b []byte
	for i, t := range s.Turns {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, t.Role...)
		b = append(b, ':', ' ')
		b = append(b, t.Content...)
	}
	return string(b)
}

// Chunk 带向量的文本块
type Chunk struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SessionID  string    `json:"sessionId"`
	ChunkIndex int       `json:"chunkIndex"`
	Date       string    `json:"date,omitempty"`
	EventDate  string    `json:"eventDate,omitempty"`
	Embedding  []float32 `json:"embedding"`
}

// Fact 原子事实
type Fact struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SessionID string    `json:"sessionId"`
	FactIndex int       `json:"factIndex"`
	Date      string    `json:"date,omitempty"`
	EventDate string    `json:"eventDate,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// Entity 图谱实体节点，name 为规范化主键
type Entity struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Summary    string   `json:"summary"`
	SessionIDs []string `json:"sessionIds"`
}

// Relationship 图谱关系边
type Relationship struct {
	Source    string `json:"source"`
	Relation  string `json:"relation"`
	Target    string `json:"target"`
	Date      string `json:"date,omitempty"`
	SessionID string `json:"sessionId"`
}

// ResultType 检索结果类型标签
type ResultType string

const (
	ResultChunk        ResultType = "chunk"
	ResultEntity       ResultType = "entity"
	ResultRelationship ResultType = "relationship"
	ResultProfile      ResultType = "profile"
)

// SearchResult 异构检索结果，Type 决定哪些字段有效
type SearchResult struct {
	Type        ResultType `json:"type"`
	Content     string     `json:"content"`
	Score       float64    `json:"score"`
	VectorScore float64    `json:"vectorScore,omitempty"`
	BM25Score   float64    `json:"bm25Score,omitempty"`
	RerankScore float64    `json:"rerankScore,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	ChunkIndex  int        `json:"chunkIndex,omitempty"`
	ChunkID     string     `json:"chunkId,omitempty"`
	Date        string     `json:"date,omitempty"`

	// entity 结果字段
	Name       string `json:"name,omitempty"`
	EntityType string `json:"entityType,omitempty"`

	// relationship 结果字段
	Source   string `json:"source,omitempty"`
	Relation string `json:"relation,omitempty"`
	Target   string `json:"target,omitempty"`
}

// ExtractedEntity 抽取器产出的实体行
type ExtractedEntity struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

// ExtractedRelation 抽取器产出的关系行
type ExtractedRelation struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
	Date     string `json:"date,omitempty"`
}

// Extraction 单个会话的抽取结果
type Extraction struct {
	MemoriesText string              `json:"memoriesText"`
	Entities     []ExtractedEntity   `json:"entities"`
	Relations    []ExtractedRelation `json:"relations"`
}

// ContainerState 容器索引的可持久化状态
type ContainerState struct {
	Chunks        []*Chunk
	Facts         []*Fact
	Entities      []*Entity
	Relationships []*Relationship
	Profile       []string
}
