package profile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeProfiles_AppendsNewFacts(t *testing.T) {
	merged := MergeProfiles(
		[]string{"likes coffee"},
		[]string{"owns a golden retriever"},
	)
	require.Equal(t, []string{"likes coffee", "owns a golden retriever"}, merged)
}

func TestMergeProfiles_ReplacesOverlapping(t *testing.T) {
	merged := MergeProfiles(
		[]string{"works at ACME as engineer"},
		[]string{"works at ACME as senior engineer"},
	)
	require.Len(t, merged, 1)
	require.Equal(t, "works at ACME as senior engineer", merged[0])
}

func TestMergeProfiles_SkipsBlank(t *testing.T) {
	merged := MergeProfiles([]string{"has two cats"}, []string{"", "   "})
	require.Equal(t, []string{"has two cats"}, merged)
}

func TestMergeProfiles_ReplacesOnlyFirstMatch(t *testing.T) {
	merged := MergeProfiles(
		[]string{"drinks tea daily", "lives in Lisbon"},
		[]string{"drinks green tea daily"},
	)
	require.Equal(t, []string{"drinks green tea daily", "lives in Lisbon"}, merged)
}

func TestWordOverlap(t *testing.T) {
	require.InDelta(t, 1.0, wordOverlap("likes coffee", "likes coffee"), 1e-9)
	require.InDelta(t, 0.0, wordOverlap("alpha beta", "gamma delta"), 1e-9)
	require.Zero(t, wordOverlap("", "anything"))
}

func TestStore_MergeAndFormat(t *testing.T) {
	s := NewStore()
	require.False(t, s.HasData())
	require.Empty(t, s.Format())

	s.Merge([]string{"likes coffee", "owns a dog"})
	require.True(t, s.HasData())
	require.Equal(t, "<user_profile>\n- likes coffee\n- owns a dog\n</user_profile>", s.Format())
}

func TestStore_StateRestoreRoundtrip(t *testing.T) {
	s := NewStore()
	s.Merge([]string{"fact one", "fact two"})

	restored := NewStore()
	restored.Restore(s.State())
	require.Equal(t, []string{"fact one", "fact two"}, restored.Facts())

	restored.Clear()
	require.False(t, restored.HasData())
}
