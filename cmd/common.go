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
	"bufio"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/notargets/gopart/InputParameters"
	"github.com/notargets/gopart/config"
	"github.com/notargets/gopart/metrics"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/partition"
	"github.com/notargets/gopart/types"
)

// Run holds what a subcommand needs: the engine, its metrics registry and
// the parameters read from flags or a run file.
type Run struct {
	cfg    *config.Config
	log    zerolog.Logger
	reg    *prometheus.Registry
	engine *partition.Engine[int32]
	params *InputParameters.RunParameters
	opts   options.Options
}

func newRun(cmd *cobra.Command) (*Run, error) {
	cfg, logger := setup()
	r := &Run{
		cfg:    cfg,
		log:    logger,
		reg:    prometheus.NewRegistry(),
		params: &InputParameters.RunParameters{},
	}
	r.engine = partition.NewEngine[int32](cfg, logger, metrics.NewRecorder(r.reg))
	if file, _ := cmd.Flags().GetString("inputParametersFile"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err = r.params.Parse(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
	}
	r.flags(cmd)
	opts, err := r.params.ToOptions()
	if err != nil {
		return nil, err
	}
	if seed, _ := cmd.Flags().GetInt("seed"); seed >= 0 && cmd.Flags().Changed("seed") {
		opts = opts.With(options.SEED, seed)
	}
	r.opts = opts
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		r.params.Print()
	}
	return r, nil
}

// flags overrides run file values with the flags given on the command line.
func (r *Run) flags(cmd *cobra.Command) {
	p, f := r.params, cmd.Flags()
	if f.Changed("file") || p.Input == "" {
		p.Input, _ = f.GetString("file")
	}
	if f.Changed("output") || p.Output == "" {
		p.Output, _ = f.GetString("output")
	}
	if f.Lookup("nparts") != nil && (f.Changed("nparts") || p.NParts == 0) {
		p.NParts, _ = f.GetInt("nparts")
	}
	if f.Lookup("ncommon") != nil && (f.Changed("ncommon") || p.NCommon == 0) {
		p.NCommon, _ = f.GetInt("ncommon")
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "F", "", "input file")
	cmd.Flags().StringP("output", "o", "", "output file, default derived from the input name")
	cmd.Flags().StringP("inputParametersFile", "I", "", "YAML run file with parts, weights and options")
	cmd.Flags().Int("seed", -1, "random seed")
	cmd.Flags().BoolP("verbose", "v", false, "print the run parameters")
}

// output is the file a result is written to.
func (r *Run) output(suffix string) string {
	if r.params.Output != "" {
		return r.params.Output
	}
	return r.params.Input + suffix
}

// writeLabels writes one value per line, the format of METIS part files.
func writeLabels(path string, labels []int32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, l := range labels {
		fmt.Fprintln(w, l)
	}
	if err = w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// report logs the call metrics gathered during the run.
func (r *Run) report() {
	families, err := r.reg.Gather()
	if err != nil {
		r.log.Warn().Err(err).Msg("gathering metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			ev := r.log.Debug().Str("metric", mf.GetName())
			for _, lp := range m.GetLabel() {
				ev = ev.Str(lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				ev = ev.Float64("value", m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				ev = ev.Uint64("count", m.GetHistogram().GetSampleCount()).Float64("sum", m.GetHistogram().GetSampleSum())
			}
			ev.Msg("metric")
		}
	}
}

// fail prints err with its status code and exits.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v (%s)\n", err, types.StatusOf(err))
	os.Exit(1)
}
