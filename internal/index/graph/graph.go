// Package graph 提供实体关系图谱与有界广度遍历
package graph

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

const (
	// 遍历上限，防止稠密图谱爆炸
	MaxHops               = 2
	MaxNeighborsPerNode   = 30
	MaxTotalRelationships = 200
)

// NormalizeName 实体名规范化：去首尾空白、小写、空格转下划线
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Graph 单容器的有向标注多重图
type Graph struct {
	nodes    map[string]*memory.Entity
	edges    []*memory.Relationship
	edgeSeen map[string]struct{}
}

// NewGraph 创建空图谱
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*memory.Entity),
		edgeSeen: make(map[string]struct{}),
	}
}

// AddEntity 创建或合并节点
// 合并时追加新摘要、并集会话 ID、保留首见类型
func (g *Graph) AddEntity(name, entityType, summary, sessionID string) {
	key := NormalizeName(name)
	if key == "" {
		return
	}

	node, ok := g.nodes[key]
	if !ok {
		node = &memory.Entity{Name: key, Type: entityType, Summary: summary}
		if sessionID != "" {
			node.SessionIDs = []string{sessionID}
		}
		g.nodes[key] = node
		return
	}

	if summary != "" && !strings.Contains(node.Summary, summary) {
		if node.Summary == "" {
			node.Summary = summary
		} else {
			node.Summary = node.Summary + "; " + summary
		}
	}
	if node.Type == "" {
		node.Type = entityType
	}
	if sessionID != "" && !containsString(node.SessionIDs, sessionID) {
		node.SessionIDs = append(node.SessionIDs, sessionID)
	}
}

// AddRelationship 写入边，按 (source, relation, target, sessionId) 去重
// 缺失的端点节点会被补建
func (g *Graph) AddRelationship(rel *memory.Relationship) {
	if rel == nil {
		return
	}
	source := NormalizeName(rel.Source)
	target := NormalizeName(rel.Target)
	if source == "" || target == "" || rel.Relation == "" {
		return
	}

	key := source + "\x00" + rel.Relation + "\x00" + target + "\x00" + rel.SessionID
	if _, ok := g.edgeSeen[key]; ok {
		return
	}
	g.edgeSeen[key] = struct{}{}

	if _, ok := g.nodes[source]; !ok {
		g.AddEntity(source, "", "", rel.SessionID)
	}
	if _, ok := g.nodes[target]; !ok {
		g.AddEntity(target, "", "", rel.SessionID)
	}

	g.edges = append(g.edges, &memory.Relationship{
		Source:    source,
		Relation:  rel.Relation,
		Target:    target,
		Date:      rel.Date,
		SessionID: rel.SessionID,
	})
}

// FindEntitiesInQuery 返回出现在查询中的节点名
// 节点名需作为分词后查询的 token 或子串出现
func (g *Graph) FindEntitiesInQuery(query string) []string {
	normalized := NormalizeName(query)
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	var seeds []string
	for name := range g.nodes {
		if _, ok := tokenSet[name]; ok {
			seeds = append(seeds, name)
			continue
		}
		if strings.Contains(normalized, name) {
			seeds = append(seeds, name)
		}
	}
	sort.Strings(seeds)
	return seeds
}

// Context 从种子节点出发的有界广度遍历
// 同时走出边与入边，节点与 (source, relation, target) 去重
func (g *Graph) Context(seeds []string, maxHops int) ([]*memory.Entity, []*memory.Relationship) {
	if maxHops <= 0 {
		maxHops = MaxHops
	}

	visited := make(map[string]struct{})
	edgeOut := make(map[string]struct{})
	var entities []*memory.Entity
	var relationships []*memory.Relationship

	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		key := NormalizeName(s)
		if _, ok := g.nodes[key]; !ok {
			continue
		}
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}
		entities = append(entities, g.nodes[key])
		frontier = append(frontier, key)
	}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, name := range frontier {
			neighbors := 0
			for _, e := range g.edges {
				if len(relationships) >= MaxTotalRelationships {
					return entities, relationships
				}
				if neighbors >= MaxNeighborsPerNode {
					break
				}

				var other string
				switch name {
				case e.Source:
					other = e.Target
				case e.Target:
					other = e.Source
				default:
					continue
				}

				ek := e.Source + "\x00" + e.Relation + "\x00" + e.Target
				if _, ok := edgeOut[ek]; !ok {
					edgeOut[ek] = struct{}{}
					relationships = append(relationships, e)
					neighbors++
				}

				if _, ok := visited[other]; !ok {
					visited[other] = struct{}{}
					if node, exists := g.nodes[other]; exists {
						entities = append(entities, node)
					}
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	return entities, relationships
}

// SearchRelations 返回端点命中查询词的关系
func (g *Graph) SearchRelations(query string, limit int) []*memory.Relationship {
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(tokens) == 0 || limit <= 0 {
		return nil
	}

	var out []*memory.Relationship
	for _, e := range g.edges {
		for _, t := range tokens {
			if strings.Contains(e.Source, t) || strings.Contains(e.Target, t) {
				out = append(out, e)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Entity 按规范化名查节点
func (g *Graph) Entity(name string) *memory.Entity {
	return g.nodes[NormalizeName(name)]
}

// HasData 是否持有任何节点
func (g *Graph) HasData() bool {
	return len(g.nodes) > 0
}

// Counts 节点数与边数
func (g *Graph) Counts() (int, int) {
	return len(g.nodes), len(g.edges)
}

// Clear 清空图谱
func (g *Graph) Clear() {
	g.nodes = make(map[string]*memory.Entity)
	g.edges = nil
	g.edgeSeen = make(map[string]struct{})
}

// State 导出节点与边用于快照
func (g *Graph) State() ([]*memory.Entity, []*memory.Relationship) {
	entities := make([]*memory.Entity, 0, len(g.nodes))
	for _, n := range g.nodes {
		entities = append(entities, n)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
	return entities, g.edges
}

// Restore 从快照重建图谱
func (g *Graph) Restore(entities []*memory.Entity, relationships []*memory.Relationship) {
	g.Clear()
	for _, e := range entities {
		if e == nil {
			continue
		}
		node := *e
		node.Name = NormalizeName(node.Name)
		if node.Name == "" {
			continue
		}
		g.nodes[node.Name] = &node
	}
	for _, r := range relationships {
		g.AddRelationship(r)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
