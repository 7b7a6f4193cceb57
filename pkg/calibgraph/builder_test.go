package calibgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_AddVertex(t *testing.T) {
	tests := []struct {
		name    string
		vertex  Vertex
		wantErr error
	}{
		{"node", NewNode("rabi", succeed), nil},
		{"nil vertex", nil, ErrInvalidVertex},
		{"nil graph", (*Graph)(nil), ErrInvalidVertex},
		{"empty name", NewNode("", succeed), ErrInvalidVertex},
		{"whitespace in name", NewNode("rabi amp", succeed), ErrInvalidVertex},
		{"slash in name", NewNode("a/b", succeed), ErrInvalidVertex},
		{"unfinalized graph", &Graph{name: "inner"}, ErrNotFinalized},
		{"plain vertex", plainVertex("desc"), ErrInvalidVertex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder("g").AddVertex(tt.vertex)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidGraph)
		})
	}
}

// plainVertex implements Vertex but is neither a Node nor a Graph.
type plainVertex string

func (p plainVertex) Name() string        { return "plain" }
func (p plainVertex) Description() string { return string(p) }

func TestBuilder_ImmediateErrors(t *testing.T) {
	b := NewBuilder("g")
	require.NoError(t, b.AddVertex(NewNode("a", succeed)))

	assert.ErrorIs(t, b.AddVertex(NewNode("a", failAll)), ErrDuplicateVertex)
	assert.ErrorIs(t, b.Connect("a", "a"), ErrSelfEdge)
	assert.ErrorIs(t, b.ConnectOnFailure("a", "a"), ErrSelfEdge)

	require.NoError(t, b.Loop("a", 2, false))
	assert.ErrorIs(t, b.Loop("a", 3, true), ErrDuplicateLoop)
}

func TestBuilder_FinalizeErrors(t *testing.T) {
	a := NewNode("a", succeed)
	c := NewNode("c", succeed)
	d := NewNode("d", succeed)

	tests := []struct {
		name  string
		build func(b *Builder) error
		want  []error
	}{
		{
			"empty graph",
			func(b *Builder) error { return nil },
			[]error{ErrEmptyGraph},
		},
		{
			"edge to missing vertex",
			func(b *Builder) error {
				return errors.Join(b.AddVertex(a), b.Connect("a", "ghost"))
			},
			[]error{ErrVertexNotFound},
		},
		{
			"loop on missing vertex",
			func(b *Builder) error {
				return errors.Join(b.AddVertex(a), b.Loop("ghost", 1, false))
			},
			[]error{ErrVertexNotFound},
		},
		{
			"duplicate edge",
			func(b *Builder) error {
				return errors.Join(addAll(b, a, c),
					b.Connect("a", "c", WithCondition(TargetIn("q1"))),
					b.Connect("a", "c", WithCondition(TargetIn("q2"))))
			},
			[]error{ErrDuplicateEdge},
		},
		{
			"ambiguous unconditioned edges",
			func(b *Builder) error {
				return errors.Join(addAll(b, a, c, d), b.Connect("a", "c"), b.Connect("a", "d"))
			},
			[]error{ErrAmbiguousEdges},
		},
		{
			"ambiguous when only one is conditioned",
			func(b *Builder) error {
				return errors.Join(addAll(b, a, c, d),
					b.ConnectOnFailure("a", "c", WithCondition(TargetIn("q1"))),
					b.ConnectOnFailure("a", "d"))
			},
			[]error{ErrAmbiguousEdges},
		},
		{
			"cycle",
			func(b *Builder) error {
				return errors.Join(addAll(b, a, c, d),
					b.Connect("a", "c"), b.Connect("c", "d"), b.Connect("d", "a"))
			},
			[]error{ErrCycle},
		},
		{
			"several problems are joined",
			func(b *Builder) error {
				return errors.Join(addAll(b, a, c, d),
					b.Connect("a", "ghost"),
					b.Connect("c", "d"), b.Connect("c", "a"))
			},
			[]error{ErrVertexNotFound, ErrAmbiguousEdges},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("g")
			require.NoError(t, tt.build(b))

			g, err := b.Finalize()
			require.Error(t, err)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, ErrInvalidGraph)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestBuilder_ExplicitConditionsAllowFanOut(t *testing.T) {
	g, err := Build("g", func(b *Builder) error {
		return errors.Join(
			addAll(b, NewNode("a", succeed), NewNode("b", succeed), NewNode("c", succeed)),
			b.Connect("a", "b", WithCondition(Always())),
			b.Connect("a", "c", WithCondition(TargetIn("q1"))),
		)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, g.Successors("a"))
}

func TestBuilder_AlreadyFinalized(t *testing.T) {
	b := NewBuilder("g")
	require.NoError(t, b.AddVertex(NewNode("a", succeed)))
	require.NoError(t, b.AddVertex(NewNode("b", succeed)))
	_, err := b.Finalize()
	require.NoError(t, err)

	assert.ErrorIs(t, b.AddVertex(NewNode("c", succeed)), ErrAlreadyFinalized)
	assert.ErrorIs(t, b.Connect("a", "b"), ErrAlreadyFinalized)
	assert.ErrorIs(t, b.ConnectOnFailure("a", "b"), ErrAlreadyFinalized)
	assert.ErrorIs(t, b.Loop("a", 1, false), ErrAlreadyFinalized)

	_, err = b.Finalize()
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestBuilder_FailedFinalizeKeepsBuilderOpen(t *testing.T) {
	b := NewBuilder("g")
	require.NoError(t, b.AddVertex(NewNode("a", succeed)))
	require.NoError(t, b.Connect("a", "b"))

	_, err := b.Finalize()
	require.ErrorIs(t, err, ErrVertexNotFound)

	require.NoError(t, b.AddVertex(NewNode("b", succeed)))
	_, err = b.Finalize()
	assert.NoError(t, err)
}

func TestBuild_PropagatesScopeError(t *testing.T) {
	_, err := Build("g", func(b *Builder) error {
		return b.AddVertex(nil)
	})
	assert.ErrorIs(t, err, ErrInvalidVertex)
}

func TestGraph_Introspection(t *testing.T) {
	inner := mustBuild(t, "inner", func(b *Builder) error {
		return errors.Join(addAll(b, NewNode("x", succeed), NewNode("y", succeed)), b.Connect("x", "y"))
	})

	g := mustBuild(t, "outer", func(b *Builder) error {
		return errors.Join(
			addAll(b,
				NewNode("spec", succeed, WithDescription("resonator spectroscopy")),
				NewNode("rabi", succeed),
				inner,
				NewNode("report", succeed),
				NewNode("standalone", succeed),
			),
			b.Connect("spec", "rabi"),
			b.ConnectOnFailure("spec", "inner"),
			b.Connect("rabi", "report"),
			b.Connect("inner", "report"),
			b.Loop("spec", 2, true),
		)
	}, WithDescription("single qubit tuneup"))

	assert.Equal(t, "outer", g.Name())
	assert.Equal(t, "single qubit tuneup", g.Description())
	assert.True(t, g.Finalized())
	assert.Equal(t, []string{"spec", "rabi", "inner", "report", "standalone"}, g.Vertices())
	assert.Equal(t, []string{"spec", "standalone"}, g.Roots())
	assert.Equal(t, []string{"report", "standalone"}, g.Leaves())
	assert.Equal(t, []string{"rabi", "inner"}, g.Successors("spec"))
	assert.Equal(t, []string{"rabi", "inner"}, g.Predecessors("report"))
	assert.Equal(t, 7, g.Size())

	v, ok := g.Vertex("spec")
	require.True(t, ok)
	assert.Equal(t, "resonator spectroscopy", v.Description())
	assert.True(t, g.HasVertex("inner"))
	assert.False(t, g.HasVertex("x"))

	loop, ok := g.LoopOf("spec")
	require.True(t, ok)
	assert.True(t, loop.IsLoop())
	assert.Equal(t, OutcomeFailed, loop.Scenario)
	assert.Equal(t, LoopCondition{MaxIterations: 2, OnFailure: true}, *loop.Loop)

	edges := g.Edges()
	require.Len(t, edges, 5)
	assert.True(t, edges[4].IsLoop())
	assert.Equal(t, OutcomeFailed, g.OutEdges("spec")[1].Scenario)
}
