package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/DaphneDana/Matlab-app/internal/fixtures"
)

var (
	historySearch string
	historyStatus string
	historyType   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past analyses from the dashboard fixtures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dashboard, err := fixtures.Default()
		if err != nil {
			return err
		}
		provider, err := fixtures.NewProvider(dashboard)
		if err != nil {
			return err
		}
		query := fixtures.HistoryQuery{
			Search: historySearch,
			Status: historyStatus,
			Type:   historyType,
		}
		if err := query.Validate(); err != nil {
			return err
		}
		return renderHistory(cmd.OutOrStdout(), provider, query)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySearch, "search", "", "filter by title or file name")
	historyCmd.Flags().StringVar(&historyStatus, "status", fixtures.FilterAll, "filter by status (completed, failed, processing)")
	historyCmd.Flags().StringVar(&historyType, "type", fixtures.FilterAll, "filter by analysis type")
	rootCmd.AddCommand(historyCmd)
}

func renderHistory(out io.Writer, p *fixtures.Provider, q fixtures.HistoryQuery) error {
	analyses := p.History(q)
	if len(analyses) == 0 {
		fmt.Fprintln(out, "No analyses found")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Title", "Date", "Type", "File", "Records", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, a := range analyses {
		table.Append([]string{
			strconv.Itoa(a.ID),
			a.Title,
			a.Date,
			a.Type,
			a.FileName,
			a.Records(),
			colorStatus(a.Status),
		})
	}
	table.Render()

	fmt.Fprintf(out, "\nShowing %d of %d analyses\n", len(analyses), p.HistoryTotal())
	return nil
}

func colorStatus(s fixtures.Status) string {
	switch s {
	case fixtures.StatusCompleted:
		return color.GreenString(string(s))
	case fixtures.StatusFailed:
		return color.RedString(string(s))
	case fixtures.StatusProcessing:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
