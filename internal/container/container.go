// Package container 管理按标签隔离的记忆容器
package container

import (
	"sync"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/internal/index/facts"
	"github.com/Jinstronda/jinstronda-memory/internal/index/graph"
	"github.com/Jinstronda/jinstronda-memory/internal/index/hybrid"
	"github.com/Jinstronda/jinstronda-memory/internal/index/profile"
)

// Container 单个容器的全部索引与读写锁
// 读者：检索、快照；写者：摄取提交、从盘加载
type Container struct {
	sync.RWMutex

	Tag     string
	Hybrid  *hybrid.Engine
	Facts   *facts.Store
	Graph   *graph.Graph
	Profile *profile.Store

	loaded bool
}

func newContainer(tag string) *Container {
	return &Container{
		Tag:     tag,
		Hybrid:  hybrid.NewEngine(),
		Facts:   facts.NewStore(),
		Graph:   graph.NewGraph(),
		Profile: profile.NewStore(),
	}
}

// HasData 任一索引非空即视为有数据
// 调用方需持有读锁
func (c *Container) HasData() bool {
	return c.Hybrid.HasData() || c.Facts.HasData() || c.Graph.HasData() || c.Profile.HasData()
}

// State 导出容器状态
// 调用方需持有读锁
func (c *Container) State() *memory.ContainerState {
	entities, relationships := c.Graph.State()
	return &memory.ContainerState{
		Chunks:        c.Hybrid.State(),
		Facts:         c.Facts.State(),
		Entities:      entities,
		Relationships: relationships,
		Profile:       c.Profile.State(),
	}
}

// restore 用持久化状态覆盖容器索引
// 调用方需持有写锁
func (c *Container) restore(state *memory.ContainerState) {
	c.Hybrid.Restore(state.Chunks)
	c.Facts.Restore(state.Facts)
	c.Graph.Restore(state.Entities, state.Relationships)
	c.Profile.Restore(state.Profile)
	c.loaded = true
}

// clear 清空全部索引
// 调用方需持有写锁
func (c *Container) clear() {
	c.Hybrid.Clear()
	c.Facts.Clear()
	c.Graph.Clear()
	c.Profile.Clear()
	c.loaded = false
}

// MarkLoaded 标记容器已完成一次加载尝试
// 调用方需持有写锁
func (c *Container) MarkLoaded() {
	c.loaded = true
}
