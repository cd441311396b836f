package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogOrder(t *testing.T) {
	require.Equal(t,
		[]string{"tracking", "a1", "labour", "master", "link", "achiv", "works"},
		Names(),
	)
}

func TestCatalogDescriptorsConsistent(t *testing.T) {
	seen := map[string]bool{}
	for _, spec := range Catalog() {
		require.False(t, seen[spec.Name()], spec.Name())
		seen[spec.Name()] = true

		require.Equal(t, spec.Name(), spec.Descriptor.Name)
		require.NotNil(t, spec.Descriptor.Source, spec.Name())
		require.NotEmpty(t, spec.Descriptor.Output.DataCell, spec.Name())
		require.NotEmpty(t, spec.Target.DefaultTab, spec.Name())
		require.Positive(t, spec.Timeout, spec.Name())
		require.GreaterOrEqual(t, spec.MaxRetries, 0, spec.Name())
	}
}

func TestLookupByAlias(t *testing.T) {
	spec, ok := Lookup("A1.cjs")
	require.True(t, ok)
	require.Equal(t, "a1", spec.Name())
	require.Equal(t, "R1.1", spec.Target.DefaultTab)

	_, ok = Lookup("runall")
	require.False(t, ok)
}

func TestTrackingHasLongerBudget(t *testing.T) {
	tracking, _ := Lookup("tracking")
	a1, _ := Lookup("a1")
	require.Greater(t, tracking.Timeout, a1.Timeout)
	require.Less(t, tracking.MaxRetries, a1.MaxRetries)
}
