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
	"github.com/notargets/gopart/partition"
	"github.com/notargets/gopart/types"
)

// PartGraphCmd represents the partgraph command
var PartGraphCmd = &cobra.Command{
	Use:   "partgraph",
	Short: "Partition a graph file into k parts",
	Long: `
Partitions a graph in METIS format with the multilevel k-way scheme or by
recursive bisection and writes one part per vertex to <file>.part.<nparts>.

gopart partgraph -F 4elt.graph -n 16 --scheme rb`,
	Run: func(cmd *cobra.Command, args []string) {
		r, err := newRun(cmd)
		if err != nil {
			fail(err)
		}
		scheme, _ := cmd.Flags().GetString("scheme")
		if r.params.Operation != "" && !cmd.Flags().Changed("scheme") {
			scheme = r.params.Operation
		}
		if err = measured(cmd, r.log, func() error { return r.partGraph(scheme) }); err != nil {
			fail(err)
		}
		r.report()
	},
}

func init() {
	rootCmd.AddCommand(PartGraphCmd)
	addRunFlags(PartGraphCmd)
	PartGraphCmd.Flags().IntP("nparts", "n", 2, "number of parts")
	PartGraphCmd.Flags().String("scheme", "kway", "kway or rb (recursive bisection)")
}

func (r *Run) partGraph(scheme string) error {
	g, err := graph.ReadGraphFile[int32](r.params.Input, types.CNumbering)
	if err != nil {
		return err
	}
	var (
		p      = r.params
		objval int32
		part   []int32
	)
	switch scheme {
	case "kway":
		objval, part, err = r.engine.PartGraphKway(g, p.NParts, p.TargetReals(), p.ImbalanceReals(), &r.opts, nil)
	case "rb", "recursive":
		objval, part, err = r.engine.PartGraphRecursive(g, p.NParts, p.TargetReals(), p.ImbalanceReals(), &r.opts, nil)
	default:
		return fmt.Errorf("unknown scheme %q", scheme)
	}
	if err != nil {
		return err
	}
	r.log.Info().Int("nvtxs", g.NumVertices()).Int("nparts", p.NParts).Int32("objval", objval).Msg("partitioned")
	stats, err := partition.Analyze(g, part, p.NParts)
	if err != nil {
		return err
	}
	stats.Log(r.log)
	return writeLabels(r.output(fmt.Sprintf(".part.%d", p.NParts)), part)
}
