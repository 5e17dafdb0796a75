package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/scholaris-sis/scholaris-sis/testing"
)

func TestAllKeysUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for _, key := range All() {
		_, dup := seen[key]
		require.False(t, dup, "duplicate catalog key %q", key)
		seen[key] = struct{}{}
	}
}

func TestExists(t *testing.T) {
	require.True(t, Exists(PermStudentRead))
	require.True(t, Exists(PermPaymentWrite))
	require.False(t, Exists("Student.Delete"))
	require.False(t, Exists(""))
}

func TestGroupsCoverCatalog(t *testing.T) {
	total := 0
	for _, g := range Groups() {
		require.NotEmpty(t, g.Name)
		total += len(g.Keys)
		for _, key := range g.Keys {
			require.True(t, Exists(key), "group %s lists unknown key %q", g.Name, key)
		}
	}
	require.Equal(t, len(All()), total)
}

func TestGroupsReturnsCopies(t *testing.T) {
	first := Groups()
	first[0].Keys[0] = "Tampered.Key"
	require.True(t, Exists(PermStudentRead))
	require.Equal(t, PermStudentRead, Groups()[0].Keys[0])
}
