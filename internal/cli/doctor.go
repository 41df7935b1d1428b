package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/gpumon/internal/collector"
	"github.com/rileyhilliard/gpumon/internal/doctor"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/ui"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
)

// probeTimeout bounds each host probe in doctor.
const probeTimeout = 10 * time.Second

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor [cluster]",
	Short: "Diagnose SSH and cluster setup",
	Long: `Run diagnostic checks on the local SSH setup and the cluster files.

With a cluster name, every host in it is also probed with nvidia-smi -L
using the cluster's transport.

Checks:
  - ssh client on PATH
  - ~/.ssh/config parses
  - default SSH key and agent
  - every cluster file loads and validates
  - host reachability (with a cluster name)

Examples:
  gpumon doctor
  gpumon doctor lab
  gpumon doctor lab --json`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeClusterNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := clusterStore()
		checks := doctor.NewSSHChecks()
		checks = append(checks, doctor.NewClusterChecks(store)...)

		if len(args) == 1 {
			c, err := store.Load(args[0])
			if err != nil {
				return err
			}
			entries, _ := sshutil.ParseSSHConfig() // a broken config is reported by the ssh_config check
			checks = append(checks, doctor.NewHostChecks(collector.UniqueHosts(c.Hosts), newRunner(c), probeTimeout, entries)...)
		}

		results := doctor.RunAllParallel(cmd.Context(), checks, 8)

		if doctorJSON {
			if err := outputDoctorJSON(cmd.OutOrStdout(), checks, results); err != nil {
				return err
			}
		} else {
			outputDoctorText(cmd.OutOrStdout(), checks, results)
		}

		if doctor.HasFailures(results) {
			return errors.New(errors.ErrExec, doctor.Summary(results), "Fix the failing checks above and run gpumon doctor again")
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(doctorCmd)
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

func outputDoctorJSON(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) error {
	grouped := doctor.GroupByCategory(checks)
	out := DoctorOutput{Categories: []CategoryOutput{}}

	for _, cat := range doctor.CategoryOrder {
		indices := grouped[cat]
		if len(indices) == 0 {
			continue
		}
		co := CategoryOutput{Name: cat}
		for _, i := range indices {
			co.Results = append(co.Results, results[i])
		}
		out.Categories = append(out.Categories, co)
	}

	counts := doctor.CountByStatus(results)
	out.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: counts[doctor.StatusWarn]+counts[doctor.StatusFail] == 0,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func outputDoctorText(w io.Writer, checks []doctor.Check, results []doctor.CheckResult) {
	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	warnStyle := lipgloss.NewStyle().Foreground(ui.ColorWarning)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("gpumon Diagnostic Report"))

	grouped := doctor.GroupByCategory(checks)
	for _, cat := range doctor.CategoryOrder {
		indices := grouped[cat]
		if len(indices) == 0 {
			continue
		}

		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(cat))
		for _, i := range indices {
			r := results[i]

			var symbol string
			switch r.Status {
			case doctor.StatusPass:
				symbol = successStyle.Render(ui.SymbolSuccess)
			case doctor.StatusWarn:
				symbol = warnStyle.Render(ui.SymbolWarning)
			default:
				symbol = errorStyle.Render(ui.SymbolFail)
			}

			label := r.Message
			if cat == doctor.CategoryHosts {
				label = r.Name + ": " + r.Message
			}
			fmt.Fprintf(w, "  %s %s\n", symbol, label)
			if r.Suggestion != "" && r.Status != doctor.StatusPass {
				fmt.Fprintf(w, "    %s\n", mutedStyle.Render(r.Suggestion))
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, doctor.Summary(results))
}
