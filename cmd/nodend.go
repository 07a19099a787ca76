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
	"github.com/spf13/cobra"

	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/ordering"
	"github.com/notargets/gopart/types"
)

// NodeNDCmd represents the nodend command
var NodeNDCmd = &cobra.Command{
	Use:   "nodend",
	Short: "Compute a fill reducing ordering of a graph file",
	Long: `
Orders the vertices of a graph by multilevel nested dissection and writes the
new number of every vertex to <file>.iperm.

gopart nodend -F bcsstk31.graph`,
	Run: func(cmd *cobra.Command, args []string) {
		r, err := newRun(cmd)
		if err != nil {
			fail(err)
		}
		npes, _ := cmd.Flags().GetInt("npes")
		if err = measured(cmd, r.log, func() error { return r.nodeND(npes) }); err != nil {
			fail(err)
		}
		r.report()
	},
}

func init() {
	rootCmd.AddCommand(NodeNDCmd)
	addRunFlags(NodeNDCmd)
	NodeNDCmd.Flags().Int("npes", 0, "also report the separator tree sizes for this many processors, a power of two")
}

func (r *Run) nodeND(npes int) error {
	g, err := graph.ReadGraphFile[int32](r.params.Input, types.CNumbering)
	if err != nil {
		return err
	}
	var (
		o     = ordering.NewOrderer(r.engine)
		iperm []int32
	)
	if npes > 0 {
		var sizes []int32
		if _, iperm, sizes, err = o.NodeNDP(g, npes, &r.opts, nil, nil); err != nil {
			return err
		}
		r.log.Info().Interface("sizes", sizes).Msg("separator tree")
	} else if _, iperm, err = o.NodeND(g, nil, &r.opts, nil, nil); err != nil {
		return err
	}
	r.log.Info().Int("nvtxs", g.NumVertices()).Msg("ordered")
	return writeLabels(r.output(".iperm"), iperm)
}
