// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Jinstronda/jinstronda-memory/internal/interfaces/http/handler"
)

// RegisterMemoryRoutes 注册记忆读写路由
func RegisterMemoryRoutes(engine *gin.Engine, h *handler.MemoryHandler) {
	// 容器管理
	engine.GET("/containers", h.Containers)
	engine.DELETE("/clear/:tag", h.Clear)

	// 记忆读写
	engine.POST("/ingest", h.Ingest)
	engine.POST("/search", h.Search)
	engine.POST("/store", h.Store)
	engine.GET("/memories", h.Memories)

	// 实体图
	graph := engine.Group("/graph")
	{
		graph.GET("", h.Graph)
		graph.GET("/deep", h.GraphDeep)
		graph.POST("/dedupe/:tag", h.GraphDedupe)
	}
}
