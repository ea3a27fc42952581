package container

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
	"github.com/Jinstronda/jinstronda-memory/pkg/metrics"
)

var tracer = otel.Tracer("container")

// Store 容器状态的持久化后端
// 快照文件与关系型实现共用此接口
type Store interface {
	Save(ctx context.Context, tag string, state *memory.ContainerState) error
	Load(ctx context.Context, tag string) (*memory.ContainerState, error)
	Clear(ctx context.Context, tag string) error
	Tags(ctx context.Context) ([]string, error)
	Has(ctx context.Context, tag string) bool
}

// Manager 按标签管理容器生命周期
type Manager struct {
	mu         sync.Mutex
	containers map[string]*Container

	store Store
	group singleflight.Group
}

// NewManager 创建容器管理器
func NewManager(store Store) *Manager {
	return &Manager{
		containers: make(map[string]*Container),
		store:      store,
	}
}

// Get 获取容器，不存在则创建空容器
func (m *Manager) Get(tag string) *Container {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.containers[tag]
	if !ok {
		c = newContainer(tag)
		m.containers[tag] = c
		metrics.LoadedContainers.Set(float64(len(m.containers)))
	}
	return c
}

// EnsureLoaded 获取容器并按需从后端加载状态
// 同一标签的并发加载合并为一次
func (m *Manager) EnsureLoaded(ctx context.Context, tag string) (*Container, error) {
	c := m.Get(tag)

	c.RLock()
	loaded := c.loaded || c.HasData()
	c.RUnlock()
	if loaded {
		return c, nil
	}

	_, err, _ := m.group.Do(tag, func() (interface{}, error) {
		ctx, span := tracer.Start(ctx, "container.Manager.load",
			trace.WithAttributes(attribute.String("container.tag", tag)))
		defer span.End()

		c.RLock()
		loaded := c.loaded || c.HasData()
		c.RUnlock()
		if loaded {
			return nil, nil
		}

		if !m.store.Has(ctx, tag) {
			c.Lock()
			c.MarkLoaded()
			c.Unlock()
			return nil, nil
		}

		state, err := m.store.Load(ctx, tag)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		c.Lock()
		c.restore(state)
		c.Unlock()

		logger.Info(ctx, "container loaded",
			"container_tag", tag,
			"chunks", len(state.Chunks),
			"facts", len(state.Facts),
			"entities", len(state.Entities),
		)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Persist 将容器当前状态写入后端
func (m *Manager) Persist(ctx context.Context, tag string) error {
	ctx, span := tracer.Start(ctx, "container.Manager.Persist",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	c := m.Get(tag)

	c.RLock()
	state := c.State()
	c.RUnlock()

	if err := m.store.Save(ctx, tag, state); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Clear 清空容器内存状态并删除持久化数据
func (m *Manager) Clear(ctx context.Context, tag string) error {
	ctx, span := tracer.Start(ctx, "container.Manager.Clear",
		trace.WithAttributes(attribute.String("container.tag", tag)))
	defer span.End()

	m.mu.Lock()
	c, ok := m.containers[tag]
	if ok {
		delete(m.containers, tag)
		metrics.LoadedContainers.Set(float64(len(m.containers)))
	}
	m.mu.Unlock()

	if ok {
		c.Lock()
		c.clear()
		c.Unlock()
	}

	if err := m.store.Clear(ctx, tag); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Tags 列出内存中有数据的容器与后端已落盘的容器
func (m *Manager) Tags(ctx context.Context) ([]string, error) {
	stored, err := m.store.Tags(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stored))
	for _, tag := range stored {
		seen[tag] = struct{}{}
	}

	m.mu.Lock()
	for tag, c := range m.containers {
		c.RLock()
		hasData := c.HasData()
		c.RUnlock()
		if hasData {
			seen[tag] = struct{}{}
		}
	}
	m.mu.Unlock()

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}
