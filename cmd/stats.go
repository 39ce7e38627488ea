package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/camden-git/facebench/config"
	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/repository"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show historical statistics per model",
	Long:  `Prints the latest persisted aggregate per model followed by the most recent sessions.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show failed sessions per model",
	Args:  cobra.NoArgs,
	RunE:  runFailures,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(failuresCmd)

	statsCmd.Flags().Int("limit", 10, "Number of recent sessions to list")
	statsCmd.Flags().String("model", "", "Only list sessions of this model")
}

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	store, closeDB, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	filter := repository.TestFilter{Limit: mustGetInt(cmd, "limit")}
	if raw := mustGetString(cmd, "model"); raw != "" {
		model, ok := parseModelChoice(raw)
		if !ok {
			return fmt.Errorf("unknown model %q", raw)
		}
		filter.ModelName = string(model)
	}

	aggregates, err := store.GetHistoricalAggregateStats(cmd.Context())
	if err != nil {
		return err
	}
	tests, err := store.ListTestResults(cmd.Context(), filter)
	if err != nil {
		return err
	}

	fmt.Println("\nHistorical Model Performance:")
	if len(aggregates) == 0 {
		fmt.Println(mutedStyle.Render("  no successful sessions recorded yet"))
	} else {
		rows := make([][]string, 0, len(aggregates))
		for _, a := range aggregates {
			rows = append(rows, []string{
				a.ModelName,
				fmt.Sprint(a.TotalTests),
				fmt.Sprintf("%.1f%%", a.OverallRecognitionRate),
				fmt.Sprintf("%.3fs", a.OverallProcessingTime),
				fmt.Sprintf("%.2f%%", a.OverallConfidence*100),
				a.CalculationTimestamp.Local().Format(time.DateTime),
			})
		}
		fmt.Println(renderTable([]string{"Model", "Tests", "Recognition Rate", "Processing Time", "Confidence", "Updated"}, rows))
	}

	if len(tests) > 0 {
		fmt.Println("\nRecent Sessions:")
		rows := make([][]string, 0, len(tests))
		for _, t := range tests {
			modelName, personName := "?", "?"
			if t.Model != nil {
				modelName = t.Model.Name
			}
			if t.Person != nil {
				personName = t.Person.Name
			}
			rows = append(rows, []string{
				t.Timestamp.Local().Format(time.DateTime),
				modelName,
				personName,
				fmt.Sprint(t.TotalAttempts),
				fmt.Sprint(t.SuccessfulRecognitions),
				fmt.Sprintf("%.1f%%", t.AvgRecognitionRate),
				fmt.Sprintf("%.2f%%", t.AvgConfidence*100),
			})
		}
		fmt.Println(renderTable([]string{"Time", "Model", "Person", "Attempts", "Successes", "Rate", "Confidence"}, rows))
	}
	return nil
}

func runFailures(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	store, closeDB, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	failures, err := store.GetFailureStats(cmd.Context())
	if err != nil {
		return err
	}

	thresholds, _ := recognition.NewThresholds(cfg.Thresholds)
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		last := "-"
		if f.LastUpdated != nil {
			last = f.LastUpdated.Local().Format(time.DateTime)
		}
		minConf := recognition.DefaultMinConfidence
		if m, ok := recognition.ParseModel(f.ModelName); ok {
			minConf = thresholds.For(m)
		}
		rows = append(rows, []string{f.ModelName, fmt.Sprint(f.Count), fmt.Sprintf("%.2f", minConf), last})
	}

	fmt.Println("\nFailed Sessions:")
	fmt.Println(renderTable([]string{"Model", "Failures", "Min Confidence", "Last Failure"}, rows))
	return nil
}
