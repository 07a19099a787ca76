/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/mesh"
)

// MeshGraphCmd represents the meshgraph command
var MeshGraphCmd = &cobra.Command{
	Use:   "meshgraph",
	Short: "Convert a mesh file into its dual or nodal graph",
	Long: `
Writes the dual (element) or nodal graph of a mesh in METIS graph format to
<file>.dgraph or <file>.ngraph.

gopart meshgraph -F box.mesh --gtype dual --ncommon 3`,
	Run: func(cmd *cobra.Command, args []string) {
		r, err := newRun(cmd)
		if err != nil {
			fail(err)
		}
		gtype, _ := cmd.Flags().GetString("gtype")
		if err = r.meshGraph(gtype); err != nil {
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(MeshGraphCmd)
	addRunFlags(MeshGraphCmd)
	MeshGraphCmd.Flags().Int("ncommon", 1, "nodes two elements share to be dual neighbors")
	MeshGraphCmd.Flags().String("gtype", "dual", "dual or nodal")
}

func (r *Run) meshGraph(gtype string) error {
	m, err := mesh.ReadMeshFile[int32](r.params.Input)
	if err != nil {
		return err
	}
	var (
		g      *graph.CSR[int32]
		suffix string
	)
	switch gtype {
	case "dual":
		g, err = m.ToDual(r.params.NCommon)
		suffix = ".dgraph"
	case "nodal":
		g, err = m.ToNodal()
		suffix = ".ngraph"
	default:
		return fmt.Errorf("unknown mesh graph type %q", gtype)
	}
	if err != nil {
		return err
	}
	r.log.Info().Int("nvtxs", g.NumVertices()).Int("nedges", g.NumEdges()/2).Msg("mesh graph")
	return graph.WriteGraphFile(r.output(suffix), g)
}
