// Package analyticscmder provides the analytics command, a summary of
// material download activity.
package analyticscmder

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eduspark/portal/cmd/eduspark/portalenv"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/portal"
	"github.com/eduspark/portal/pkg/utils"
)

const (
	barWidth  = 30
	nameWidth = 40
)

type analyticsCommander struct {
	limit int
}

const analyticsLongDesc string = `Summarize material download activity.

Shows total downloads, unique students and completions, downloads per subject
and per education level, and the most recent downloads.

Examples:
  eduspark analytics
  eduspark analytics --limit 500 --storage sqlite --sqlite ./eduspark.db`

const analyticsShortDesc string = "Summarize material download activity"

func NewAnalyticsCmd() *cobra.Command {
	cmder := &analyticsCommander{}

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: analyticsShortDesc,
		Long:  analyticsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().IntVar(&cmder.limit, "limit", 0, "Only summarize the newest N downloads (0 for all)")
	portalenv.AddFlags(cmd)

	return cmd
}

func (c *analyticsCommander) run(cmd *cobra.Command) error {
	if c.limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	env, err := portalenv.Open(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	tracker := portal.NewTracker(env.Store, env.Identity, env.Logger)
	downloads, err := tracker.Recent(cmd.Context(), c.limit)
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), portal.Summarize(downloads))
	return nil
}

func printSummary(out io.Writer, s portal.Summary) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Total downloads:"), cliui.ValueStyle.Render(fmt.Sprint(s.Total)))
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Unique students:"), cliui.ValueStyle.Render(fmt.Sprint(s.UniqueStudents)))
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Completed:"), cliui.ValueStyle.Render(fmt.Sprint(s.Completed)))

	if s.Total == 0 {
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("No downloads recorded yet."))
		return
	}

	printCounts(out, "Downloads by subject", s.BySubject)
	printCounts(out, "Downloads by level", s.ByLevel)

	fmt.Fprintf(out, "  %s\n", cliui.HeadingStyle.Render("Recent downloads"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, d := range s.Recent {
		status := "downloaded"
		if d.Completed {
			status = "completed"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			d.DownloadedAt.Local().Format("2006-01-02 15:04"),
			utils.Truncate(d.MaterialName, nameWidth),
			d.Level,
			status,
		)
	}
	w.Flush()
	fmt.Fprintln(out)
}

func printCounts(out io.Writer, title string, counts []portal.Count) {
	fmt.Fprintf(out, "  %s\n", cliui.HeadingStyle.Render(title))

	maxN := 0
	for _, c := range counts {
		maxN = max(maxN, c.Downloads)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range counts {
		fmt.Fprintf(w, "  %s\t%d\t%s\n", c.Name, c.Downloads, cliui.Bar(c.Downloads, maxN, barWidth))
	}
	w.Flush()
	fmt.Fprintln(out)
}
