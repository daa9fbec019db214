package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ternflow/tern/pkg/dag"
)

// graphSpec is the YAML shape accepted by the render command.
type graphSpec struct {
	Vertices []struct {
		Name  string `yaml:"name"`
		Label string `yaml:"label"`
		Type  string `yaml:"type"`
	} `yaml:"vertices"`
	Edges []struct {
		From  string `yaml:"from"`
		To    string `yaml:"to"`
		Label string `yaml:"label"`
	} `yaml:"edges"`
}

var renderCmd = &cobra.Command{
	Use:   "render <graph.yaml>",
	Short: "Render a workflow graph in dot format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var spec graphSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("failed to parse graph: %w", err)
		}

		vertices := make(map[string]*dag.Vertex, len(spec.Vertices))
		for _, v := range spec.Vertices {
			vertices[v.Name] = &dag.Vertex{
				Name:  v.Name,
				Label: v.Label,
				Type:  dag.VertexType(v.Type),
			}
		}

		graph := dag.New()
		for _, e := range spec.Edges {
			from, ok := vertices[e.From]
			if !ok {
				return fmt.Errorf("edge references unknown vertex %q", e.From)
			}
			to, ok := vertices[e.To]
			if !ok {
				return fmt.Errorf("edge references unknown vertex %q", e.To)
			}
			if err := graph.AddEdge(from, to, e.Label); err != nil {
				return err
			}
		}

		fmt.Println(dag.Render(graph))
		return nil
	},
}
