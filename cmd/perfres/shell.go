package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/xtxerr/perfres/internal/dim"
	"github.com/xtxerr/perfres/internal/results"
)

// shellState is the interactive query shell over a loaded run.
type shellState struct {
	perf       *results.PerformanceResults
	milestones []string
}

func runShell(perf *results.PerformanceResults, milestones []string) {
	s := &shellState{perf: perf, milestones: milestones}
	fmt.Println("perfres shell: 'help' lists commands, 'quit' exits")
	p := prompt.New(
		s.execute,
		s.complete,
		prompt.OptionPrefix("perfres> "),
		prompt.OptionTitle("perfres"),
	)
	p.Run()
}

func (s *shellState) execute(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "quit", "exit":
		os.Exit(0)
	case "help":
		fmt.Print(`commands:
  scenarios                                list loaded scenarios
  configs <scenario>                       list configurations
  builds <scenario> <config> [pattern]     list builds, optionally filtered
  deviation <scenario> <config>            current build deviation and stderr
  stats <scenario> <config> <dim>          cross-build statistics (milestone builds)
  dist <scenario> <config> <dim>           cross-build percentile distribution
  nightlies <scenario> <config> <n>        last n nightly build names
  quit                                     exit
`)
	case "scenarios":
		for _, scn := range s.perf.Scenarios() {
			fmt.Printf("%s (%d configs)\n", scn.Name(), scn.Size())
		}
	case "configs":
		if len(args) < 2 {
			fmt.Println("usage: configs <scenario>")
			return
		}
		scn, ok := s.perf.Scenario(args[1])
		if !ok {
			fmt.Printf("unknown scenario %q\n", args[1])
			return
		}
		for _, cfg := range scn.Configs() {
			fmt.Printf("%s (%d builds, baselined=%t valid=%t)\n",
				cfg.Name(), cfg.Size(), cfg.IsBaselined(), cfg.IsValid())
		}
	case "builds":
		cfg := s.config(args, 3)
		if cfg == nil {
			return
		}
		pattern := ""
		if len(args) > 3 {
			pattern = args[3]
		}
		for _, b := range cfg.Builds(pattern) {
			marker := " "
			switch b {
			case cfg.CurrentBuild():
				marker = "*"
			case cfg.BaselineBuild():
				marker = "^"
			}
			fmt.Printf("%s %s\n", marker, b.Name())
		}
	case "deviation":
		cfg := s.config(args, 3)
		if cfg == nil {
			return
		}
		deviation, stderr := cfg.CurrentBuildDeviation()
		fmt.Printf("%s vs %s: %+.2f%% (stderr %.4f)\n",
			cfg.CurrentBuildName(), cfg.BaselineBuildName(), deviation*100, stderr)
	case "stats":
		cfg, d, ok := s.configDim(args)
		if !ok {
			return
		}
		st := cfg.Statistics(s.milestones, d.ID)
		fmt.Printf("count=%d mean=%.2f stddev=%.2f cv=%.2f%%\n", st.Count, st.Mean, st.StdDev, st.CV)
	case "dist":
		cfg, d, ok := s.configDim(args)
		if !ok {
			return
		}
		dist := cfg.Distribution(s.milestones, d.ID)
		if !dist.HasPercentiles() {
			fmt.Println("no summarizable values")
			return
		}
		fmt.Printf("count=%d min=%.2f p50=%.2f p90=%.2f p95=%.2f p99=%.2f max=%.2f\n",
			dist.Count, dist.Min, dist.P50, dist.P90, dist.P95, dist.P99, dist.Max)
	case "nightlies":
		cfg := s.config(args, 4)
		if cfg == nil {
			return
		}
		n, err := strconv.Atoi(args[3])
		if err != nil || n <= 0 {
			fmt.Println("usage: nightlies <scenario> <config> <n>")
			return
		}
		for _, name := range cfg.LastNightlyBuildNames(n) {
			fmt.Println(name)
		}
	default:
		fmt.Printf("unknown command %q (try 'help')\n", args[0])
	}
}

// config resolves args[1]/args[2] to a configuration, printing usage when
// fewer than minArgs arguments are present.
func (s *shellState) config(args []string, minArgs int) *results.ConfigResults {
	if len(args) < minArgs {
		fmt.Printf("usage: %s <scenario> <config> ...\n", args[0])
		return nil
	}
	scn, ok := s.perf.Scenario(args[1])
	if !ok {
		fmt.Printf("unknown scenario %q\n", args[1])
		return nil
	}
	cfg, ok := scn.Config(args[2])
	if !ok {
		fmt.Printf("unknown configuration %q\n", args[2])
		return nil
	}
	return cfg
}

func (s *shellState) configDim(args []string) (*results.ConfigResults, dim.Dim, bool) {
	cfg := s.config(args, 4)
	if cfg == nil {
		return nil, dim.Dim{}, false
	}
	d, ok := dim.ByName(args[3])
	if !ok {
		fmt.Printf("unknown dimension %q\n", args[3])
		return nil, dim.Dim{}, false
	}
	return cfg, d, true
}

func (s *shellState) complete(d prompt.Document) []prompt.Suggest {
	args := strings.Fields(d.TextBeforeCursor())
	word := d.GetWordBeforeCursor()

	// Completing the command itself.
	if len(args) == 0 || (len(args) == 1 && word != "") {
		return prompt.FilterHasPrefix([]prompt.Suggest{
			{Text: "scenarios", Description: "list loaded scenarios"},
			{Text: "configs", Description: "list configurations"},
			{Text: "builds", Description: "list builds"},
			{Text: "deviation", Description: "current build deviation"},
			{Text: "stats", Description: "cross-build statistics"},
			{Text: "dist", Description: "percentile distribution"},
			{Text: "nightlies", Description: "last nightly builds"},
			{Text: "help", Description: "list commands"},
			{Text: "quit", Description: "exit"},
		}, word, true)
	}

	// Positional completion: scenario, then configuration, then dimension.
	pos := len(args)
	if word != "" {
		pos--
	}
	switch pos {
	case 1:
		var suggestions []prompt.Suggest
		for _, scn := range s.perf.Scenarios() {
			suggestions = append(suggestions, prompt.Suggest{Text: scn.Name()})
		}
		return prompt.FilterHasPrefix(suggestions, word, true)
	case 2:
		scn, ok := s.perf.Scenario(args[1])
		if !ok {
			return nil
		}
		var suggestions []prompt.Suggest
		for _, cfg := range scn.Configs() {
			suggestions = append(suggestions, prompt.Suggest{Text: cfg.Name()})
		}
		return prompt.FilterHasPrefix(suggestions, word, true)
	case 3:
		if args[0] != "stats" && args[0] != "dist" {
			return nil
		}
		var suggestions []prompt.Suggest
		for _, d := range dim.Supported() {
			suggestions = append(suggestions, prompt.Suggest{Text: d.Name, Description: d.Unit})
		}
		return prompt.FilterHasPrefix(suggestions, word, true)
	}
	return nil
}
