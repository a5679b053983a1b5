package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"barakahAPI/internal/progression"

	"github.com/spf13/cobra"
)

type levelRow struct {
	Level   int    `json:"level"`
	TotalBP int    `json:"total_bp"`
	Maqam   string `json:"maqam"`
}

type levelsReport struct {
	Levels  []levelRow          `json:"levels"`
	Maqamat []progression.Maqam `json:"maqamat"`
}

func NewLevelsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Print level thresholds and maqam bands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLevels(cmd.OutOrStdout(), rootOpts.Format)
		},
	}
}

func buildLevelsReport() levelsReport {
	r := levelsReport{Maqamat: progression.Maqamat}
	for level := 1; level <= progression.MaxLevel; level++ {
		r.Levels = append(r.Levels, levelRow{
			Level:   level,
			TotalBP: progression.TotalBPForLevel(level),
			Maqam:   progression.MaqamForLevel(level).Name,
		})
	}
	return r
}

func printLevels(out io.Writer, format string) error {
	report := buildLevelsReport()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tTOTAL BP\tMAQAM")
	for _, row := range report.Levels {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", row.Level, row.TotalBP, row.Maqam)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MAQAM\tLEVELS\tGAUGE BP")
	for _, m := range report.Maqamat {
		levels := fmt.Sprintf("%d+", m.StartLevel)
		gauge := fmt.Sprintf("%d+", m.StartBP())
		if !m.Terminal() {
			levels = fmt.Sprintf("%d-%d", m.StartLevel, m.NextStartLevel-1)
			gauge = fmt.Sprintf("%d-%d", m.StartBP(), m.NextStartBP())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, levels, gauge)
	}
	return tw.Flush()
}
