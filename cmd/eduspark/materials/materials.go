// Package materialscmder provides the materials command for browsing the
// national curriculum catalog and recording downloads.
package materialscmder

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eduspark/portal/cmd/eduspark/portalenv"
	"github.com/eduspark/portal/pkg/cliui"
	"github.com/eduspark/portal/pkg/portal"
)

type materialsCommander struct {
	search  string
	level   string
	subject string
	sort    string
	catalog string
}

const materialsLongDesc string = `Browse the national curriculum materials catalog.

Lists catalog entries with their download counts. Narrow the list with a
search term, a level or a subject, and order it by download count with
--sort most-downloaded.

Use a custom catalog with --catalog, a JSON array of objects with level,
subject and link fields.

Examples:
  eduspark materials
  eduspark materials --level S3 --sort most-downloaded
  eduspark materials --search math
  eduspark materials download S3 Physics
  eduspark materials complete <download-id>`

const materialsShortDesc string = "Browse the materials catalog"

func NewMaterialsCmd() *cobra.Command {
	cmder := &materialsCommander{}

	cmd := &cobra.Command{
		Use:   "materials",
		Short: materialsShortDesc,
		Long:  materialsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.runList(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&cmder.catalog, "catalog", "", "Path to a JSON materials catalog (default: bundled catalog)")
	cmd.Flags().StringVar(&cmder.search, "search", "", "Only show materials whose level or subject contains this text")
	cmd.Flags().StringVar(&cmder.level, "level", "all", "Only show this education level")
	cmd.Flags().StringVar(&cmder.subject, "subject", "all", "Only show this subject")
	cmd.Flags().StringVar(&cmder.sort, "sort", portal.SortNewest, "Order: newest or most-downloaded")
	portalenv.AddFlags(cmd)

	cmd.AddCommand(newDownloadCmd(cmder))
	cmd.AddCommand(newCompleteCmd())

	return cmd
}

func (c *materialsCommander) loadCatalog() ([]portal.Material, error) {
	if c.catalog == "" {
		return portal.Catalog()
	}

	f, err := os.Open(c.catalog)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return portal.LoadCatalog(f)
}

func (c *materialsCommander) runList(cmd *cobra.Command) error {
	if c.sort != portal.SortNewest && c.sort != portal.SortMostDownloaded {
		return fmt.Errorf("invalid sort %q (available: %s, %s)", c.sort, portal.SortNewest, portal.SortMostDownloaded)
	}

	materials, err := c.loadCatalog()
	if err != nil {
		return err
	}

	env, err := portalenv.Open(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	tracker := portal.NewTracker(env.Store, env.Identity, env.Logger)
	counts, err := tracker.Counts(cmd.Context())
	if err != nil {
		return err
	}

	filtered := portal.FilterMaterials(materials, portal.Filter{
		Search:  c.search,
		Level:   c.level,
		Subject: c.subject,
		Sort:    c.sort,
	}, counts)

	out := cmd.OutOrStdout()
	if len(filtered) == 0 {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No materials match the current filters."))
		return nil
	}

	printMaterials(out, filtered, counts)
	fmt.Fprintf(out, "\n  %s %s\n",
		cliui.DimStyle.Render(fmt.Sprintf("%d of %d materials.", len(filtered), len(materials))),
		cliui.DimStyle.Render("Levels: "+strings.Join(portal.Levels(materials), ", ")),
	)
	return nil
}

func printMaterials(out io.Writer, materials []portal.Material, counts map[string]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tSUBJECT\tDOWNLOADS\tLINK")
	for _, m := range materials {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", m.Level, m.Subject, counts[m.Key()], m.Link)
	}
	w.Flush()
}
