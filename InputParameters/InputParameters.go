package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/types"
)

// Parameters obtained from the YAML run file
type RunParameters struct {
	Title         string         `json:"Title"`
	Operation     string         `json:"Operation"` // kway, recursive, dual, nodal, nodend
	Input         string         `json:"Input"`     // graph (.graph) or mesh (.mesh, .su2) file
	Output        string         `json:"Output"`
	NParts        int            `json:"NParts"`
	NCommon       int            `json:"NCommon"`
	Processes     int            `json:"Processes"` // ranks of a distributed run, 0 runs serially
	TargetWeights []float64      `json:"TargetWeights"`
	Imbalance     []float64      `json:"Imbalance"`
	Options       map[string]int `json:"Options"` // option name to value, e.g. PTYPE: 1
}

func (rp *RunParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, rp)
}

// ToOptions builds the options vector named by the Options map.
func (rp *RunParameters) ToOptions() (opts options.Options, err error) {
	opts = options.New()
	for _, name := range rp.optionNames() {
		opt, ok := options.ParseOption(name)
		if !ok {
			err = fmt.Errorf("unknown option %q in run file", name)
			return
		}
		opts = opts.With(opt, rp.Options[name])
	}
	return
}

func (rp *RunParameters) TargetReals() []types.Real    { return reals(rp.TargetWeights) }
func (rp *RunParameters) ImbalanceReals() []types.Real { return reals(rp.Imbalance) }

func reals(in []float64) []types.Real {
	if in == nil {
		return nil
	}
	out := make([]types.Real, len(in))
	for i, v := range in {
		out[i] = types.Real(v)
	}
	return out
}

func (rp *RunParameters) optionNames() []string {
	keys := make([]string, 0, len(rp.Options))
	for k := range rp.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (rp *RunParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", rp.Title)
	fmt.Printf("[%s]\t\t\t= Operation\n", rp.Operation)
	fmt.Printf("[%s]\t= Input\n", rp.Input)
	fmt.Printf("[%d]\t\t\t\t= Parts\n", rp.NParts)
	if rp.Processes > 0 {
		fmt.Printf("[%d]\t\t\t\t= Processes\n", rp.Processes)
	}
	if rp.TargetWeights != nil {
		fmt.Printf("%v\t= Target Weights\n", rp.TargetWeights)
	}
	for _, key := range rp.optionNames() {
		fmt.Printf("Options[%s] = %d\n", key, rp.Options[key])
	}
}
