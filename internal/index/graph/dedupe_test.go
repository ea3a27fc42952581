package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

func TestIsGarbageEdge(t *testing.T) {
	tests := []struct {
		name string
		edge *memory.Relationship
		tag  string
		want bool
	}{
		{"message content", &memory.Relationship{Source: "user", Relation: "said: hello there", Target: "bob"}, "t1", true},
		{"posted message", &memory.Relationship{Source: "user", Relation: "Posted_Message: hi", Target: "chan"}, "t1", true},
		{"self referential", &memory.Relationship{Source: "bob", Relation: "knows", Target: "bob"}, "t1", true},
		{"timestamp source", &memory.Relationship{Source: "2024-01-02", Relation: "happened_on", Target: "party"}, "t1", true},
		{"timestamp target", &memory.Relationship{Source: "party", Relation: "happened_on", Target: "2024-01-02_evening"}, "t1", true},
		{"container tag endpoint", &memory.Relationship{Source: "user", Relation: "belongs_to", Target: "t1"}, "t1", true},
		{"clean edge", &memory.Relationship{Source: "user", Relation: "knows", Target: "bob"}, "t1", false},
		{"said inside name", &memory.Relationship{Source: "user", Relation: "unsaid:thing", Target: "bob"}, "t1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isGarbageEdge(tt.edge, tt.tag))
		})
	}
}

func TestGraph_DedupeRemovesGarbageEdges(t *testing.T) {
	g := NewGraph()
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "said: hi there", Target: "bob", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "bob", Relation: "knows", Target: "bob", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "2024-01-02", Relation: "happened_on", Target: "party", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "works_at", Target: "t1", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "knows", Target: "bob", SessionID: "s1"})

	stats := g.Dedupe("t1", nil)
	require.Equal(t, 5, stats.EdgesBefore)
	require.Equal(t, 4, stats.GarbageDeleted)
	require.Zero(t, stats.ClustersMerged)
	require.Zero(t, stats.EdgesDeleted)
	require.Equal(t, 1, stats.EdgesAfter)

	rels := g.SearchRelations("bob", 10)
	require.Len(t, rels, 1)
	require.Equal(t, "knows", rels[0].Relation)
}

func TestGraph_DedupeClustersRelationNames(t *testing.T) {
	g := NewGraph()
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "lives_in", Target: "berlin", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "lives_in", Target: "berlin", SessionID: "s2"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "resides_in", Target: "berlin", SessionID: "s3"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "visited", Target: "berlin", SessionID: "s4"})

	vectors := map[string][]float32{
		"lives_in":   {1, 0},
		"resides_in": {1, 0.01},
		"visited":    {0, 1},
	}

	stats := g.Dedupe("t1", vectors)
	require.Equal(t, 4, stats.EdgesBefore)
	require.Zero(t, stats.GarbageDeleted)
	require.Equal(t, 1, stats.ClustersMerged)
	require.Equal(t, 1, stats.EdgesDeleted)
	require.Equal(t, 3, stats.EdgesAfter)

	// 保留提及更多的规范名，同义名的边被删除
	var names []string
	for _, rel := range g.SearchRelations("berlin", 10) {
		names = append(names, rel.Relation)
	}
	require.ElementsMatch(t, []string{"lives_in", "lives_in", "visited"}, names)

	// 再次执行无事可做
	stats = g.Dedupe("t1", vectors)
	require.Zero(t, stats.GarbageDeleted)
	require.Zero(t, stats.EdgesDeleted)
	require.Equal(t, 3, stats.EdgesAfter)
}

func TestGraph_DedupeTieBreaksOnShorterName(t *testing.T) {
	g := NewGraph()
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "really_enjoys", Target: "coffee", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "enjoys", Target: "coffee", SessionID: "s2"})

	vectors := map[string][]float32{
		"really_enjoys": {1, 0},
		"enjoys":        {1, 0},
	}

	stats := g.Dedupe("t1", vectors)
	require.Equal(t, 1, stats.ClustersMerged)
	require.Equal(t, 1, stats.EdgesDeleted)

	rels := g.SearchRelations("coffee", 10)
	require.Len(t, rels, 1)
	require.Equal(t, "enjoys", rels[0].Relation)
}

func TestGraph_DedupeMissingVectorsSkipClustering(t *testing.T) {
	g := NewGraph()
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "lives_in", Target: "berlin", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "resides_in", Target: "berlin", SessionID: "s2"})

	stats := g.Dedupe("t1", nil)
	require.Zero(t, stats.GarbageDeleted)
	require.Zero(t, stats.ClustersMerged)
	require.Zero(t, stats.EdgesDeleted)
	require.Equal(t, 2, stats.EdgesAfter)
}

func TestGraph_RelationNamesForDedupe(t *testing.T) {
	g := NewGraph()
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "lives_in", Target: "berlin", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "resides_in", Target: "berlin", SessionID: "s2"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "knows", Target: "bob", SessionID: "s1"})
	g.AddRelationship(&memory.Relationship{Source: "user", Relation: "said: moved here", Target: "berlin", SessionID: "s3"})

	names := g.RelationNamesForDedupe("t1")
	require.Equal(t, []string{"lives_in", "resides_in"}, names)

	require.Empty(t, NewGraph().RelationNamesForDedupe("t1"))
}
