package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice", "alice"},
		{"  New York  ", "new_york"},
		{"ACME Corp", "acme_corp"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeName(tt.in))
	}
}

func TestGraph_AddEntityMerges(t *testing.T) {
	g := NewGraph()
	g.AddEntity("Alice", "person", "software engineer", "s1")
	g.AddEntity("alice", "robot", "lives in Berlin", "s2")
	g.AddEntity("Alice", "", "software engineer", "s1")

	node := g.Entity("Alice")
	require.NotNil(t, node)
	require.Equal(t, "person", node.Type)
	require.Equal(t, "software engineer; lives in Berlin", node.Summary)
	require.Equal(t, []string{"s1", "s2"}, node.SessionIDs)

	nodes, _ := g.Counts()
	require.Equal(t, 1, nodes)
}

func TestGraph_AddRelationshipDedupsAndBackfillsNodes(t *testing.T) {
	g := NewGraph()
	rel := &memory.Relationship{Source: "Alice", Relation: "works_at", Target: "ACME Corp", SessionID: "s1"}
	g.AddRelationship(rel)
	g.AddRelationship(rel)
	g.AddRelationship(&memory.Relationship{Source: "Alice", Relation: "works_at", Target: "ACME Corp", SessionID: "s2"})

	nodes, edges := g.Counts()
	require.Equal(t, 2, nodes)
	require.Equal(t, 2, edges)
	require.NotNil(t, g.Entity("acme_corp"))
}

func TestGraph_AddRelationshipRejectsIncomplete(t *testing.T) {
	g := NewGraph()
	g.AddRelationship(nil)
	g.AddRelationship(&memory.Relationship{Source: "", Relation: "r", Target: "b"})
	g.AddRelationship(&memory.Relationship{Source: "a", Relation: "", Target: "b"})

	_, edges := g.Counts()
	require.Zero(t, edges)
}

func TestGraph_FindEntitiesInQuery(t *testing.T) {
	g := NewGraph()
	g.AddEntity("Alice", "person", "", "s1")
	g.AddEntity("New York", "place", "", "s1")
	g.AddEntity("Bob", "person", "", "s1")

	seeds := g.FindEntitiesInQuery("Does Alice live in New York?")
	require.Equal(t, []string{"alice", "new_york"}, seeds)

	require.Empty(t, g.FindEntitiesInQuery("nothing matches here"))
}

func TestGraph_ContextBoundedBFS(t *testing.T) {
	g := NewGraph()
	g.AddRelationship(&memory.Relationship{Source: "a", Relation: "knows", Target: "b", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "b", Relation: "knows", Target: "c", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "c", Relation: "knows", Target: "d", SessionID: "s1"})

	// 1 跳只到 b
	entities, rels := g.Context([]string{"a"}, 1)
	require.Len(t, rels, 1)
	names := entityNames(entities)
	require.Contains(t, names, "a")
	require.Contains(t, names, "b")
	require.NotContains(t, names, "c")

	// 2 跳到 c，且入边也被遍历
	entities, rels = g.Context([]string{"a"}, 2)
	names = entityNames(entities)
	require.Contains(t, names, "c")
	require.Len(t, rels, 2)
}

func TestGraph_ContextUnknownSeed(t *testing.T) {
	g := NewGraph()
	g.AddEntity("alice", "person", "", "s1")

	entities, rels := g.Context([]string{"nobody"}, 2)
	require.Empty(t, entities)
	require.Empty(t, rels)
}

func TestGraph_SearchRelations(t *testing.T) {
	g := NewGraph()
	g.AddRelationship(&memory.Relationship{Source: "Alice", Relation: "works_at", Target: "ACME", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "Bob", Relation: "lives_in", Target: "Berlin", SessionID: "s1"})

	got := g.SearchRelations("where does alice work", 10)
	require.Len(t, got, 1)
	require.Equal(t, "alice", got[0].Source)

	require.Nil(t, g.SearchRelations("", 10))
	require.Nil(t, g.SearchRelations("alice", 0))

	got = g.SearchRelations("alice bob", 1)
	require.Len(t, got, 1)
}

func TestGraph_StateRestoreRoundtrip(t *testing.T) {
	g := NewGraph()
	g.AddEntity("Alice", "person", "engineer", "s1")
	g.AddRelationship(&memory.Relationship{Source: "Alice", Relation: "works_at", Target: "ACME", SessionID: "s1"})

	entities, rels := g.State()

	restored := NewGraph()
	restored.Restore(entities, rels)

	nodes, edges := restored.Counts()
	require.Equal(t, 2, nodes)
	require.Equal(t, 1, edges)
	require.Equal(t, "engineer", restored.Entity("alice").Summary)

	// 恢复后去重集合生效，重放同一条边不会翻倍
	restored.AddRelationship(rels[0])
	_, edges = restored.Counts()
	require.Equal(t, 1, edges)
}

func entityNames(entities []*memory.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Name)
	}
	return out
}
