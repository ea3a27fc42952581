// Package snapshot 提供容器索引的原子 JSON 快照
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.opentelemetry.io/otel"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
	"github.com/Jinstronda/jinstronda-memory/pkg/logger"
	"github.com/Jinstronda/jinstronda-memory/pkg/metrics"
)

var tracer = otel.Tracer("snapshot")

const formatVersion = 1

const (
	searchFile  = "search.json"
	graphFile   = "graph.json"
	factsFile   = "facts.json"
	profileFile = "profile.json"
)

type searchPayload struct {
	Version int             `json:"version"`
	Chunks  []*memory.Chunk `json:"chunks"`
}

type graphPayload struct {
	Version       int                    `json:"version"`
	Entities      []*memory.Entity       `json:"entities"`
	Relationships []*memory.Relationship `json:"relationships"`
}

type factsPayload struct {
	Version int            `json:"version"`
	Facts   []*memory.Fact `json:"facts"`
}

type profilePayload struct {
	Version int      `json:"version"`
	Facts   []string `json:"facts"`
}

// Store 按容器目录存放快照文件
type Store struct {
	root string
}

// NewStore 创建快照存储
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Save 将容器状态写入四个快照文件，逐文件写临时再改名
func (s *Store) Save(ctx context.Context, tag string, state *memory.ContainerState) error {
	ctx, span := tracer.Start(ctx, "snapshot.Save")
	defer span.End()

	dir := filepath.Join(s.root, tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		metrics.SnapshotWriteTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	files := []struct {
		name    string
		payload interface{}
	}{
		{searchFile, &searchPayload{Version: formatVersion, Chunks: state.Chunks}},
		{graphFile, &graphPayload{Version: formatVersion, Entities: state.Entities, Relationships: state.Relationships}},
		{factsFile, &factsPayload{Version: formatVersion, Facts: state.Facts}},
		{profileFile, &profilePayload{Version: formatVersion, Facts: state.Profile}},
	}

	for _, f := range files {
		if err := writeAtomic(filepath.Join(dir, f.name), f.payload); err != nil {
			span.RecordError(err)
			metrics.SnapshotWriteTotal.WithLabelValues("error").Inc()
			return err
		}
	}

	metrics.SnapshotWriteTotal.WithLabelValues("ok").Inc()
	return nil
}

// Load 读取容器快照
// 缺失或损坏的文件记日志后按空组件处理
func (s *Store) Load(ctx context.Context, tag string) (*memory.ContainerState, error) {
	ctx, span := tracer.Start(ctx, "snapshot.Load")
	defer span.End()

	dir := filepath.Join(s.root, tag)
	state := &memory.ContainerState{}

	var search searchPayload
	if readTolerant(ctx, filepath.Join(dir, searchFile), &search) {
		state.Chunks = search.Chunks
	}

	var graph graphPayload
	if readTolerant(ctx, filepath.Join(dir, graphFile), &graph) {
		state.Entities = graph.Entities
		state.Relationships = graph.Relationships
	}

	var facts factsPayload
	if readTolerant(ctx, filepath.Join(dir, factsFile), &facts) {
		state.Facts = facts.Facts
	}

	var profile profilePayload
	if readTolerant(ctx, filepath.Join(dir, profileFile), &profile) {
		state.Profile = profile.Facts
	}

	metrics.SnapshotLoadTotal.WithLabelValues("ok").Inc()
	return state, nil
}

// Clear 删除容器快照目录
func (s *Store) Clear(ctx context.Context, tag string) error {
	return os.RemoveAll(filepath.Join(s.root, tag))
}

// Tags 列出已有快照的容器标签
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot root: %w", err)
	}

	var tags []string
	for _, e := range entries {
		if e.IsDir() {
			tags = append(tags, e.Name())
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// Has 容器是否存在快照目录
func (s *Store) Has(ctx context.Context, tag string) bool {
	info, err := os.Stat(filepath.Join(s.root, tag))
	return err == nil && info.IsDir()
}

func writeAtomic(path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename snapshot %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readTolerant 读取并解码快照文件，损坏时记日志并视为缺失
func readTolerant(ctx context.Context, path string, out interface{}) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(ctx, "snapshot read failed", "file", path, "error", err.Error())
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Warn(ctx, "snapshot corrupt, treating as absent", "file", path, "error", err.Error())
		metrics.SnapshotLoadTotal.WithLabelValues("corrupt").Inc()
		return false
	}
	return true
}
