package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jinstronda/jinstronda-memory/internal/domain/memory"
)

func TestParsePayload_FullOutput(t *testing.T) {
	payload := `MEMORIES:
User moved to Berlin in March.
User started a new job at ACME.
ENTITY|Berlin|place|capital of Germany
ENTITY|ACME|company
REL|User|moved_to|Berlin|2024-03-01
REL|User|works_at|ACME`

	got := ParsePayload(payload)

	require.Equal(t, "User moved to Berlin in March.\nUser started a new job at ACME.", got.MemoriesText)
	require.Equal(t, []memory.ExtractedEntity{
		{Name: "Berlin", Type: "place", Summary: "capital of Germany"},
		{Name: "ACME", Type: "company"},
	}, got.Entities)
	require.Equal(t, []memory.ExtractedRelation{
		{Source: "User", Relation: "moved_to", Target: "Berlin", Date: "2024-03-01"},
		{Source: "User", Relation: "works_at", Target: "ACME"},
	}, got.Relations)
}

func TestParsePayload_DropsMalformedLines(t *testing.T) {
	payload := `ENTITY|only_name
ENTITY||missing_name
REL|a|b
REL|a||c
plain memory line`

	got := ParsePayload(payload)
	require.Empty(t, got.Entities)
	require.Empty(t, got.Relations)
	require.Equal(t, "plain memory line", got.MemoriesText)
}

func TestParsePayload_SummaryKeepsPipes(t *testing.T) {
	got := ParsePayload("ENTITY|X|thing|part one | part two")
	require.Len(t, got.Entities, 1)
	require.Equal(t, "part one | part two", got.Entities[0].Summary)
}

func TestParsePayload_Empty(t *testing.T) {
	got := ParsePayload("")
	require.Empty(t, got.MemoriesText)
	require.Empty(t, got.Entities)
	require.Empty(t, got.Relations)
}
