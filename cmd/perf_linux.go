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
	perf "github.com/hodgesds/perf-utils"
	"github.com/rs/zerolog"
)

func countInstructions(logger zerolog.Logger, fn func() error) error {
	var runErr error
	pv, err := perf.CPUInstructions(func() error {
		runErr = fn()
		return runErr
	})
	if runErr != nil {
		return runErr
	}
	if err != nil {
		logger.Warn().Err(err).Msg("perf counters unavailable")
		return nil
	}
	logger.Info().Uint64("instructions", pv.Value).Uint64("time_running_ns", pv.TimeRunning).Msg("perf")
	return nil
}
