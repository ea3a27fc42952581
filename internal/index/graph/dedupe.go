package graph

import (
	"math"
	"regexp"
	"sort"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

// DedupeCosineThreshold 关系名视为同义的余弦下限
const DedupeCosineThreshold = 0.95

var (
	garbageRelationPattern = regexp.MustCompile(`(?i)^(posted_message|sent_message|said):`)
	timestampPattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// DedupeStats 图去重统计
type DedupeStats struct {
	GarbageDeleted int `json:"garbageDeleted"`
	ClustersMerged int `json:"clustersMerged"`
	EdgesDeleted   int `json:"edgesDeleted"`
	EdgesBefore    int `json:"edgesBefore"`
	EdgesAfter     int `json:"edgesAfter"`
}

// isGarbageEdge 判定抽取噪声边：消息内容关系、自指边、
// 时间戳实体、容器标签本身被当作实体
func isGarbageEdge(e *memory.Relationship, containerTag string) bool {
	if garbageRelationPattern.MatchString(e.Relation) {
		return true
	}
	if e.Source == e.Target {
		return true
	}
	if timestampPattern.MatchString(e.Source) || timestampPattern.MatchString(e.Target) {
		return true
	}
	tag := NormalizeName(containerTag)
	if tag != "" && (e.Source == tag || e.Target == tag) {
		return true
	}
	return false
}

// RelationNamesForDedupe 返回待嵌入比较的关系名
// 仅收集同一端点对上出现多个关系名的非垃圾边
func (g *Graph) RelationNamesForDedupe(containerTag string) []string {
	byPair := make(map[string]map[string]struct{})
	for _, e := range g.edges {
		if isGarbageEdge(e, containerTag) {
			continue
		}
		key := e.Source + "\x00" + e.Target
		if byPair[key] == nil {
			byPair[key] = make(map[string]struct{})
		}
		byPair[key][e.Relation] = struct{}{}
	}

	seen := make(map[string]struct{})
	var names []string
	for _, rels := range byPair {
		if len(rels) <= 1 {
			continue
		}
		for name := range rels {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Dedupe 两步清理边集：先删垃圾边，再对共享端点对的关系名
// 按嵌入余弦聚类，每簇保留提及最多的规范名
// vectors 为关系名到嵌入的映射，缺失的名字不参与聚类
func (g *Graph) Dedupe(containerTag string, vectors map[string][]float32) DedupeStats {
	stats := DedupeStats{EdgesBefore: len(g.edges)}

	kept := make([]*memory.Relationship, 0, len(g.edges))
	for _, e := range g.edges {
		if isGarbageEdge(e, containerTag) {
			stats.GarbageDeleted++
			continue
		}
		kept = append(kept, e)
	}

	byRelOfPair := make(map[string]map[string][]*memory.Relationship)
	var pairKeys []string
	for _, e := range kept {
		key := e.Source + "\x00" + e.Target
		byRel, ok := byRelOfPair[key]
		if !ok {
			byRel = make(map[string][]*memory.Relationship)
			byRelOfPair[key] = byRel
			pairKeys = append(pairKeys, key)
		}
		byRel[e.Relation] = append(byRel[e.Relation], e)
	}
	sort.Strings(pairKeys)

	drop := make(map[*memory.Relationship]struct{})
	for _, key := range pairKeys {
		byRel := byRelOfPair[key]
		if len(byRel) <= 1 {
			continue
		}

		names := make([]string, 0, len(byRel))
		for name := range byRel {
			names = append(names, name)
		}
		sort.Strings(names)
		mentions := make([]int, len(names))
		for i, name := range names {
			mentions[i] = len(byRel[name])
		}

		for _, cluster := range clusterRelations(names, vectors) {
			if len(cluster) <= 1 {
				continue
			}
			canon := pickCanonical(names, mentions, cluster)
			for _, idx := range cluster {
				if idx == canon {
					continue
				}
				for _, e := range byRel[names[idx]] {
					drop[e] = struct{}{}
					stats.EdgesDeleted++
				}
			}
			stats.ClustersMerged++
		}
	}

	if stats.GarbageDeleted == 0 && stats.EdgesDeleted == 0 {
		stats.EdgesAfter = len(g.edges)
		return stats
	}

	g.edges = nil
	g.edgeSeen = make(map[string]struct{})
	for _, e := range kept {
		if _, ok := drop[e]; ok {
			continue
		}
		g.AddRelationship(e)
	}
	stats.EdgesAfter = len(g.edges)
	return stats
}

// clusterRelations 贪心单遍聚类：未归属的名字两两比较余弦
func clusterRelations(names []string, vectors map[string][]float32) [][]int {
	assigned := make([]bool, len(names))
	var clusters [][]int
	for i := range names {
		if assigned[i] {
			continue
		}
		cluster := []int{i}
		assigned[i] = true
		if vi, ok := vectors[names[i]]; ok {
			for j := i + 1; j < len(names); j++ {
				if assigned[j] {
					continue
				}
				vj, ok := vectors[names[j]]
				if ok && relationCosine(vi, vj) >= DedupeCosineThreshold {
					cluster = append(cluster, j)
					assigned[j] = true
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// pickCanonical 簇内取提及最多者，平局取更短的名字
func pickCanonical(names []string, mentions []int, cluster []int) int {
	best := cluster[0]
	for _, idx := range cluster[1:] {
		if mentions[idx] > mentions[best] {
			best = idx
		} else if mentions[idx] == mentions[best] && len(names[idx]) < len(names[best]) {
			best = idx
		}
	}
	return best
}

func relationCosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
