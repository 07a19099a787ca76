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
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/notargets/gopart/dist"
	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/types"
)

// DistPartCmd represents the distpart command
var DistPartCmd = &cobra.Command{
	Use:   "distpart",
	Short: "Partition or order a graph with the distributed coordinator",
	Long: `
Splits a graph file into contiguous blocks, one per rank, and runs the
distributed k-way partitioner (or nested dissection with --op nodend) over an
in-process group of ranks.

gopart distpart -F 4elt.graph -n 16 -p 4`,
	Run: func(cmd *cobra.Command, args []string) {
		r, err := newRun(cmd)
		if err != nil {
			fail(err)
		}
		var (
			np, _ = cmd.Flags().GetInt("processes")
			op, _ = cmd.Flags().GetString("op")
		)
		if !cmd.Flags().Changed("processes") {
			np = r.cfg.Processes()
			if r.params.Processes > 0 {
				np = r.params.Processes
			}
		}
		if err = measured(cmd, r.log, func() error { return r.distPart(op, np) }); err != nil {
			fail(err)
		}
		r.report()
	},
}

func init() {
	rootCmd.AddCommand(DistPartCmd)
	addRunFlags(DistPartCmd)
	DistPartCmd.Flags().IntP("nparts", "n", 2, "number of parts")
	DistPartCmd.Flags().IntP("processes", "p", 2, "number of ranks")
	DistPartCmd.Flags().String("op", "kway", "kway or nodend")
}

// shareOf cuts rank p's block out of a zero based graph.
func shareOf(g *graph.CSR[int32], d *dist.Distribution, p int) *dist.Graph[int32] {
	var (
		a, b = d.First(p), d.First(p) + d.Count(p)
		off  = g.Xadj[a]
		s    = &dist.Graph[int32]{Xadj: make([]int32, 0, b-a+1)}
		ncon = g.NumConstraints()
	)
	for _, x := range g.Xadj[a : b+1] {
		s.Xadj = append(s.Xadj, x-off)
	}
	s.Adjncy = g.Adjncy[g.Xadj[a]:g.Xadj[b]]
	if g.Vwgt != nil {
		s.Vwgt = g.Vwgt[a*ncon : b*ncon]
	}
	if g.Adjwgt != nil {
		s.Adjwgt = g.Adjwgt[g.Xadj[a]:g.Xadj[b]]
	}
	return s
}

func (r *Run) distPart(op string, np int) error {
	g, err := graph.ReadGraphFile[int32](r.params.Input, types.CNumbering)
	if err != nil {
		return err
	}
	var (
		d       = dist.Split1D(g.NumVertices(), np)
		co      = dist.NewCoordinator(r.engine, r.cfg)
		popts   = &options.ParOptions{1, 0, options.DefaultParSeed, options.PSRCoupled}
		results = make([][]int32, np)
		cut     int32
		vtxdist = types.FromInts[int32](d.Dist, nil)
		p       = r.params
		suffix  string
	)
	if seed, set := r.opts.Get(options.SEED); set {
		popts[options.ParSeed] = seed
	}
	if dbg, set := r.opts.Get(options.DBGLVL); set {
		popts[options.ParDbgLvl] = dbg
	}
	err = dist.NewGroup(np, r.log).Run(context.Background(), func(c dist.Comm) error {
		share := shareOf(g, d, c.Rank())
		switch op {
		case "kway":
			objval, part, err := co.PartKway(c, vtxdist, share, dist.WgtFlag(share.Vwgt, share.Adjwgt), g.NumConstraints(),
				p.NParts, p.TargetReals(), p.ImbalanceReals(), popts, nil)
			if c.Rank() == 0 {
				cut = objval
			}
			results[c.Rank()] = part
			return err
		case "nodend":
			order, sizes, err := co.NodeND(c, vtxdist, share, popts, nil)
			if c.Rank() == 0 && err == nil {
				r.log.Info().Interface("sizes", sizes).Msg("separator tree")
			}
			results[c.Rank()] = order
			return err
		default:
			return fmt.Errorf("unknown distributed operation %q", op)
		}
	})
	if err != nil {
		return err
	}
	merged := slices.Concat(results...)
	if op == "kway" {
		r.log.Info().Int("ranks", np).Int("nparts", p.NParts).Int32("edgecut", cut).Msg("distributed partition")
		suffix = fmt.Sprintf(".part.%d", p.NParts)
	} else {
		suffix = ".iperm"
	}
	return writeLabels(r.output(suffix), merged)
}
