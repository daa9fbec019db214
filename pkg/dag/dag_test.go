package dag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWorkflowGraph(t *testing.T) {
	a := &Vertex{Name: "a", Type: VertexOrigin}
	p := &Vertex{Name: "p", Label: "p", Type: VertexProcess}
	n := &Vertex{Name: "n", Type: VertexNode}

	g := New()
	require.NoError(t, g.AddEdge(a, p, "x"))
	require.NoError(t, g.AddEdge(p, n, ""))

	expected := strings.Join([]string{
		`digraph graphname {`,
		`a [shape=point,label="",fixedsize=true,width=0.1];`,
		`p [label="p"];`,
		`a -> p [label="x"];`,
		`p [label="p"];`,
		`n [shape=point];`,
		`p -> n;`,
		`}`,
	}, "\n")
	assert.Equal(t, expected, Render(g))
}

func TestRenderDeterminism(t *testing.T) {
	g := New()
	require.NoError(t, g.AddEdge(
		&Vertex{Name: "s", Type: VertexOrigin},
		&Vertex{Name: "w", Label: "work", Type: VertexProcess}, "ch"))
	require.NoError(t, g.AddEdge(
		&Vertex{Name: "w", Label: "work", Type: VertexProcess},
		&Vertex{Name: "o", Type: VertexOperator}, ""))

	first := Render(g)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Render(g))
	}
}

func TestRenderEmptyGraph(t *testing.T) {
	assert.Equal(t, "digraph graphname {\n}", Render(New()))
}

func TestAddEdgeNilEndpoint(t *testing.T) {
	g := New()
	v := &Vertex{Name: "v", Type: VertexNode}
	assert.Error(t, g.AddEdge(nil, v, ""))
	assert.Error(t, g.AddEdge(v, nil, ""))
	assert.Empty(t, g.Edges())
}

// TestVertexAttrs covers the per-type attribute rules, labelled and not.
func TestVertexAttrs(t *testing.T) {
	tests := []struct {
		name     string
		vertex   *Vertex
		expected string
	}{
		{
			name:     "node unlabelled",
			vertex:   &Vertex{Name: "n", Type: VertexNode},
			expected: "shape=point",
		},
		{
			name:     "node labelled",
			vertex:   &Vertex{Name: "n", Label: "out", Type: VertexNode},
			expected: `shape=point,label="",xlabel="out"`,
		},
		{
			name:     "origin unlabelled",
			vertex:   &Vertex{Name: "a", Type: VertexOrigin},
			expected: `shape=point,label="",fixedsize=true,width=0.1`,
		},
		{
			name:     "origin labelled",
			vertex:   &Vertex{Name: "a", Label: "src", Type: VertexOrigin},
			expected: `shape=point,label="",fixedsize=true,width=0.1,xlabel="src"`,
		},
		{
			name:     "operator labelled",
			vertex:   &Vertex{Name: "op", Label: "map", Type: VertexOperator},
			expected: `shape=circle,label="",fixedsize=true,width=0.1,xlabel="map"`,
		},
		{
			name:     "process unlabelled yields no attributes",
			vertex:   &Vertex{Name: "p", Type: VertexProcess},
			expected: "",
		},
		{
			name:     "unknown type labelled",
			vertex:   &Vertex{Name: "x", Label: "misc", Type: VertexType("OTHER")},
			expected: `shape=none,label="misc"`,
		},
		{
			name:     "unknown type unlabelled",
			vertex:   &Vertex{Name: "x", Type: VertexType("OTHER")},
			expected: "shape=none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, vertexAttrs(tt.vertex))
		})
	}
}
