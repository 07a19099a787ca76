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

	"github.com/notargets/gopart/mesh"
)

// PartMeshCmd represents the partmesh command
var PartMeshCmd = &cobra.Command{
	Use:   "partmesh",
	Short: "Partition the elements and nodes of a mesh file",
	Long: `
Partitions a mesh (.mesh in METIS format or .su2) through its dual or nodal
graph and writes the element and node parts to <file>.epart.<nparts> and
<file>.npart.<nparts>.

gopart partmesh -F wing.su2 -n 8 --gtype dual --ncommon 3`,
	Run: func(cmd *cobra.Command, args []string) {
		r, err := newRun(cmd)
		if err != nil {
			fail(err)
		}
		gtype, _ := cmd.Flags().GetString("gtype")
		if err = measured(cmd, r.log, func() error { return r.partMesh(gtype) }); err != nil {
			fail(err)
		}
		r.report()
	},
}

func init() {
	rootCmd.AddCommand(PartMeshCmd)
	addRunFlags(PartMeshCmd)
	PartMeshCmd.Flags().IntP("nparts", "n", 2, "number of parts")
	PartMeshCmd.Flags().Int("ncommon", 1, "nodes two elements share to be dual neighbors")
	PartMeshCmd.Flags().String("gtype", "dual", "dual or nodal")
}

func (r *Run) partMesh(gtype string) error {
	m, err := mesh.ReadMeshFile[int32](r.params.Input)
	if err != nil {
		return err
	}
	var (
		p            = r.params
		objval       int32
		epart, npart []int32
	)
	switch gtype {
	case "dual":
		objval, epart, npart, err = r.engine.PartMeshDual(m, p.NParts, p.NCommon, m.Elmwgt, nil, p.TargetReals(), &r.opts, nil, nil)
	case "nodal":
		objval, epart, npart, err = r.engine.PartMeshNodal(m, p.NParts, nil, nil, p.TargetReals(), &r.opts, nil, nil)
	default:
		return fmt.Errorf("unknown mesh graph type %q", gtype)
	}
	if err != nil {
		return err
	}
	r.log.Info().Int("elements", m.NumElements()).Int("nodes", m.Nv).Int32("objval", objval).Msg("partitioned mesh")
	if p.Output != "" {
		return writeLabels(p.Output, epart)
	}
	if err = writeLabels(fmt.Sprintf("%s.epart.%d", p.Input, p.NParts), epart); err != nil {
		return err
	}
	return writeLabels(fmt.Sprintf("%s.npart.%d", p.Input, p.NParts), npart)
}
