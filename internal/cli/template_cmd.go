package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/class-builder-api/internal/models"
)

func newTemplateCmd(app *App) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the roster import template",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, filename, err := app.Exports.Template(models.ExportFormat(strings.ToLower(format)))
			if err != nil {
				return err
			}
			if output == "" {
				output = filename
			}
			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(models.ExportFormatCSV), "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file, - for stdout")
	return cmd
}
