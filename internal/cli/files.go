package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tanalyzer_go/internal/analysis"
	"tanalyzer_go/pkg/utils"
)

func newFilesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "Lista os arquivos do diretório de entrada.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := analysis.ListInputFiles(a.cfg.Paths.InputDir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nenhum arquivo em %s\n", a.cfg.Paths.InputDir)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tARQUIVO\tBYTES\tMODIFICADO")
			for _, f := range files {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", f.Index, f.Name, f.Size, utils.FormatDateTime(f.Modified))
			}
			return tw.Flush()
		},
	}
}
