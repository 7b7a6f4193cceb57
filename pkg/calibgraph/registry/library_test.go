package registry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/registry"
)

func succeed(_ calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
	return calibgraph.AllSuccessful(targets), nil
}

func tuneUp() (*calibgraph.Graph, error) {
	return calibgraph.Build("tuneup", func(b *calibgraph.Builder) error {
		return errors.Join(
			b.AddVertex(calibgraph.NewNode("spectroscopy", succeed)),
			b.AddVertex(calibgraph.NewNode("rabi", succeed)),
			b.Connect("spectroscopy", "rabi"),
		)
	})
}

func TestLibrary_Nodes(t *testing.T) {
	lib := registry.NewLibrary()
	rabi := calibgraph.NewNode("rabi", succeed)

	require.NoError(t, lib.AddNode(rabi))
	require.NoError(t, lib.AddNode(calibgraph.NewNode("echo", succeed)))
	assert.ErrorIs(t, lib.AddNode(calibgraph.NewNode("rabi", succeed)), registry.ErrDuplicate)
	assert.ErrorIs(t, lib.AddNode(nil), registry.ErrInvalidName)
	assert.ErrorIs(t, lib.AddNode(calibgraph.NewNode("", succeed)), registry.ErrInvalidName)

	got, err := lib.Node("rabi")
	require.NoError(t, err)
	assert.Same(t, rabi, got)

	_, err = lib.Node("ramsey")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	assert.Equal(t, []string{"echo", "rabi"}, lib.Nodes())
}

func TestLibrary_GraphsAreBuiltOnce(t *testing.T) {
	lib := registry.NewLibrary()
	builds := 0
	require.NoError(t, lib.AddGraph("tuneup", func() (*calibgraph.Graph, error) {
		builds++
		return tuneUp()
	}))

	first, err := lib.Graph("tuneup")
	require.NoError(t, err)
	second, err := lib.Graph("tuneup")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)
	assert.Equal(t, []string{"tuneup"}, lib.Graphs())
}

func TestLibrary_GraphErrors(t *testing.T) {
	lib := registry.NewLibrary()
	require.NoError(t, lib.AddGraph("broken", func() (*calibgraph.Graph, error) {
		return calibgraph.NewBuilder("broken").Finalize()
	}))
	require.NoError(t, lib.AddGraph("raw", func() (*calibgraph.Graph, error) {
		return &calibgraph.Graph{}, nil
	}))

	_, err := lib.Graph("broken")
	assert.ErrorIs(t, err, calibgraph.ErrEmptyGraph)

	_, err = lib.Graph("raw")
	assert.ErrorIs(t, err, calibgraph.ErrNotFinalized)

	_, err = lib.Graph("missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	assert.ErrorIs(t, lib.AddGraph("", tuneUp), registry.ErrInvalidName)
	assert.ErrorIs(t, lib.AddGraph("nil", nil), registry.ErrInvalidName)
}

func TestLibrary_SharedNamespace(t *testing.T) {
	lib := registry.NewLibrary()
	require.NoError(t, lib.AddNode(calibgraph.NewNode("rabi", succeed)))
	require.NoError(t, lib.AddGraph("tuneup", tuneUp))

	assert.ErrorIs(t, lib.AddGraph("rabi", tuneUp), registry.ErrDuplicate)
	assert.ErrorIs(t, lib.AddNode(calibgraph.NewNode("tuneup", succeed)), registry.ErrDuplicate)

	v, err := lib.Runnable("rabi")
	require.NoError(t, err)
	assert.Equal(t, "rabi", v.Name())

	v, err = lib.Runnable("tuneup")
	require.NoError(t, err)
	_, isGraph := v.(*calibgraph.Graph)
	assert.True(t, isGraph)

	_, err = lib.Runnable("nothing")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestLibrary_Remove(t *testing.T) {
	lib := registry.NewLibrary()
	require.NoError(t, lib.AddNode(calibgraph.NewNode("rabi", succeed)))
	require.NoError(t, lib.AddGraph("tuneup", tuneUp))
	assert.Equal(t, 2, lib.Len())

	g, err := lib.Graph("tuneup")
	require.NoError(t, err)

	require.NoError(t, lib.Remove("tuneup"))
	require.NoError(t, lib.Remove("rabi"))
	assert.ErrorIs(t, lib.Remove("rabi"), registry.ErrNotFound)
	assert.Zero(t, lib.Len())

	_, err = lib.Runnable("tuneup")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.True(t, g.Finalized())

	require.NoError(t, lib.AddNode(calibgraph.NewNode("tuneup", succeed)))
}

func TestLibrary_Rebuild(t *testing.T) {
	lib := registry.NewLibrary()
	failing := true
	require.NoError(t, lib.AddGraph("tuneup", func() (*calibgraph.Graph, error) {
		if failing {
			return nil, errors.New("device offline")
		}
		return tuneUp()
	}))

	_, err := lib.Graph("tuneup")
	require.Error(t, err)

	failing = false
	_, err = lib.Graph("tuneup")
	require.Error(t, err, "factory error stays cached")

	rebuilt, err := lib.Rebuild("tuneup")
	require.NoError(t, err)
	cached, err := lib.Graph("tuneup")
	require.NoError(t, err)
	assert.Same(t, rebuilt, cached)

	_, err = lib.Rebuild("missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestLibrary_EachNode(t *testing.T) {
	lib := registry.NewLibrary()
	for _, name := range []string{"ramsey", "echo", "rabi"} {
		require.NoError(t, lib.AddNode(calibgraph.NewNode(name, succeed)))
	}

	var seen []string
	lib.EachNode(func(n calibgraph.Node) bool {
		seen = append(seen, n.Name())
		return len(seen) < 2
	})
	assert.Equal(t, []string{"echo", "rabi"}, seen)
}
