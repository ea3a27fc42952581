package handler

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Jinstronda/jinstronda-memory/internal/application/ingest"
	"github.com/Jinstronda/jinstronda-memory/internal/application/search"
	"github.com/Jinstronda/jinstronda-memory/internal/container"
	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/internal/interfaces/http/dto"
	"github.com/Jinstronda/jinstronda-memory/pkg/errors"
)

var containerTagRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// MemoryHandler 记忆读写处理器
type MemoryHandler struct {
	manager      *container.Manager
	orchestrator *ingest.Orchestrator
	pipeline     *search.Pipeline
}

// NewMemoryHandler 创建记忆处理器
func NewMemoryHandler(manager *container.Manager, orchestrator *ingest.Orchestrator, pipeline *search.Pipeline) *MemoryHandler {
	return &MemoryHandler{
		manager:      manager,
		orchestrator: orchestrator,
		pipeline:     pipeline,
	}
}

func validContainerTag(tag string) bool {
	return containerTagRe.MatchString(tag)
}

// fail 按错误类型映射状态码
func fail(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	status := appErr.HTTPStatus
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	dto.Error(c, status, appErr.Message)
}

// Containers 列出所有容器标签
// @Summary 列出容器
// @Description 返回所有已知的容器标签
// @Tags Memory
// @Produce json
// @Success 200 {object} dto.ContainersResponse
// @Router /containers [get]
func (h *MemoryHandler) Containers(c *gin.Context) {
	tags, err := h.manager.Tags(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	c.JSON(http.StatusOK, dto.ContainersResponse{Containers: tags})
}

// Ingest 写入一个会话
// @Summary 写入会话
// @Description 抽取并索引一个会话的记忆
// @Tags Memory
// @Accept json
// @Produce json
// @Param body body dto.IngestRequest true "写入请求"
// @Success 200 {object} dto.IngestResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /ingest [post]
func (h *MemoryHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if !validContainerTag(req.ContainerTag) {
		dto.BadRequest(c, "invalid containerTag")
		return
	}
	if len(req.Messages) == 0 {
		dto.BadRequest(c, "messages must not be empty")
		return
	}

	ids, err := h.orchestrator.Ingest(c.Request.Context(), req.ContainerTag, req.ToSessions())
	if err != nil {
		fail(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, dto.IngestResponse{DocumentIDs: ids})
}

// Search 检索记忆
// @Summary 检索记忆
// @Description 在容器内做混合检索，返回 chunk、实体、关系与画像记录
// @Tags Memory
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.SearchResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /search [post]
func (h *MemoryHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if !validContainerTag(req.ContainerTag) {
		dto.BadRequest(c, "invalid containerTag")
		return
	}

	results, err := h.pipeline.Search(c.Request.Context(), req.ContainerTag, req.Query, req.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	if results == nil {
		results = []*memory.SearchResult{}
	}
	c.JSON(http.StatusOK, dto.SearchResponse{Results: results})
}

// Store 写入自由文本
// @Summary 写入自由文本
// @Description 将一段自由文本作为单轮会话写入容器
// @Tags Memory
// @Accept json
// @Produce json
// @Param body body dto.StoreRequest true "写入请求"
// @Success 200 {object} dto.OKResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /store [post]
func (h *MemoryHandler) Store(c *gin.Context) {
	var req dto.StoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if !validContainerTag(req.ContainerTag) {
		dto.BadRequest(c, "invalid containerTag")
		return
	}

	if err := h.orchestrator.StoreText(c.Request.Context(), req.ContainerTag, req.Text); err != nil {
		fail(c, err)
		return
	}
	dto.OK(c)
}

// Clear 清空容器
// @Summary 清空容器
// @Description 删除容器的全部内存索引与持久化状态
// @Tags Memory
// @Produce json
// @Param tag path string true "容器标签"
// @Success 200 {object} dto.OKResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /clear/{tag} [delete]
func (h *MemoryHandler) Clear(c *gin.Context) {
	tag := c.Param("tag")
	if !validContainerTag(tag) {
		dto.BadRequest(c, "invalid containerTag")
		return
	}

	if err := h.orchestrator.Clear(c.Request.Context(), tag); err != nil {
		fail(c, err)
		return
	}
	dto.OK(c)
}

// Memories 列出容器内的 chunk
// @Summary 列出记忆
// @Description 返回容器内已存储的 chunk
// @Tags Memory
// @Produce json
// @Param containerTag query string true "容器标签"
// @Param limit query int false "返回条数上限"
// @Success 200 {object} dto.MemoriesResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /memories [get]
func (h *MemoryHandler) Memories(c *gin.Context) {
	tag := c.Query("containerTag")
	if !validContainerTag(tag) {
		dto.BadRequest(c, "invalid containerTag")
		return
	}
	limit := queryInt(c, "limit")

	chunks, err := h.pipeline.Memories(c.Request.Context(), tag, limit)
	if err != nil {
		fail(c, err)
		return
	}

	items := make([]dto.MemoryItem, 0, len(chunks))
	for _, chunk := range chunks {
		items = append(items, dto.MemoryItem{
			ID:        chunk.ID,
			Content:   chunk.Content,
			SessionID: chunk.SessionID,
			Date:      chunk.Date,
		})
	}
	c.JSON(http.StatusOK, dto.MemoriesResponse{Memories: items})
}

// Graph 检索图关系
// @Summary 检索关系
// @Description 返回端点命中查询词的关系
// @Tags Graph
// @Produce json
// @Param containerTag query string true "容器标签"
// @Param query query string false "查询词"
// @Param limit query int false "返回条数上限"
// @Success 200 {object} dto.GraphResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /graph [get]
func (h *MemoryHandler) Graph(c *gin.Context) {
	tag := c.Query("containerTag")
	if !validContainerTag(tag) {
		dto.BadRequest(c, "invalid containerTag")
		return
	}
	limit := queryInt(c, "limit")

	relations, err := h.pipeline.GraphRelations(c.Request.Context(), tag, c.Query("query"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if relations == nil {
		relations = []*memory.Relationship{}
	}
	c.JSON(http.StatusOK, dto.GraphResponse{Relations: relations})
}

// GraphDeep 图遍历
// @Summary 图遍历
// @Description 从查询词发现种子实体并做受限 BFS
// @Tags Graph
// @Produce json
// @Param containerTag query string true "容器标签"
// @Param query query string false "查询词"
// @Param maxHops query int false "最大跳数"
// @Success 200 {object} dto.GraphDeepResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /graph/deep [get]
func (h *MemoryHandler) GraphDeep(c *gin.Context) {
	tag := c.Query("containerTag")
	if !validContainerTag(tag) {
		dto.BadRequest(c, "invalid containerTag")
		return
	}
	maxHops := queryInt(c, "maxHops")

	entities, relationships, err := h.pipeline.GraphDeep(c.Request.Context(), tag, c.Query("query"), maxHops)
	if err != nil {
		fail(c, err)
		return
	}
	if entities == nil {
		entities = []*memory.Entity{}
	}
	if relationships == nil {
		relationships = []*memory.Relationship{}
	}
	c.JSON(http.StatusOK, dto.GraphDeepResponse{
		Entities:      entities,
		Relationships: relationships,
	})
}

// GraphDedupe 图去重
// @Summary 图去重
// @Description 删除垃圾边并合并同端点对上的同义关系名
// @Tags Graph
// @Produce json
// @Param tag path string true "容器标签"
// @Success 200 {object} dto.DedupeResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /graph/dedupe/{tag} [post]
func (h *MemoryHandler) GraphDedupe(c *gin.Context) {
	tag := c.Param("tag")
	if !validContainerTag(tag) {
		dto.BadRequest(c, "invalid containerTag")
		return
	}

	stats, err := h.orchestrator.DedupeGraph(c.Request.Context(), tag)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DedupeResponse{
		OK:             true,
		GarbageDeleted: stats.GarbageDeleted,
		ClustersMerged: stats.ClustersMerged,
		EdgesDeleted:   stats.EdgesDeleted,
		EdgesBefore:    stats.EdgesBefore,
		EdgesAfter:     stats.EdgesAfter,
	})
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
