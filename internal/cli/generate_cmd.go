package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/noah-isme/class-builder-api/internal/allocation"
	"github.com/noah-isme/class-builder-api/internal/dto"
	"github.com/noah-isme/class-builder-api/internal/models"
	"github.com/noah-isme/class-builder-api/internal/service"
)

type generateOptions struct {
	input     string
	years     []string
	total     int
	composite int
	min       int
	max       int
	seed      int64
	output    string
	format    string
	title     string
}

func (o *generateOptions) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.input, "input", "i", "", "roster file (.xlsx, .csv, .tsv or .txt)")
	fs.StringSliceVar(&o.years, "years", nil, "year levels, e.g. 7,8")
	fs.IntVar(&o.total, "total", 0, "total number of classes")
	fs.IntVar(&o.composite, "composite", 0, "number of composite classes")
	fs.IntVar(&o.min, "min", 0, "advisory minimum class size")
	fs.IntVar(&o.max, "max", 0, "maximum class size")
	fs.Int64Var(&o.seed, "seed", 0, "random seed for reproducible output")
	fs.StringVarP(&o.output, "output", "o", "", "write the classes to this file")
	fs.StringVar(&o.format, "format", "", "xlsx, csv or pdf (defaults to the output extension)")
	fs.StringVar(&o.title, "title", "Classes", "document title")
}

func (o *generateOptions) exportFormat() models.ExportFormat {
	if o.format != "" {
		return models.ExportFormat(strings.ToLower(o.format))
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(o.output)), ".")
	if ext == "" {
		return models.ExportFormatXLSX
	}
	return models.ExportFormat(ext)
}

func newGenerateCmd(app *App) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate classes from a roster file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			file, err := os.Open(opts.input)
			if err != nil {
				return fmt.Errorf("opening roster: %w", err)
			}
			defer file.Close()

			parsed, err := app.Builder.ParseRoster(ctx, filepath.Base(opts.input), file)
			if err != nil {
				return err
			}

			req := dto.GenerateClassesRequest{
				Students:         studentInputs(parsed.Students),
				YearLevels:       opts.years,
				TotalClasses:     opts.total,
				CompositeClasses: opts.composite,
				ClassSize:        dto.ClassSize{Min: opts.min, Max: opts.max},
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &opts.seed
			}
			proposal, err := app.Builder.Build(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printProposal(out, proposal)

			if opts.output == "" {
				return nil
			}
			doc := service.BuildDocument(opts.title, proposal.Generated, proposal.Requests)
			data, err := app.Exports.Render(opts.exportFormat(), doc)
			if err != nil {
				return err
			}
			if err := os.WriteFile(opts.output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", opts.output, err)
			}
			fmt.Fprintf(out, "Wrote %s\n", opts.output)
			return nil
		},
	}
	opts.bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func studentInputs(students []allocation.Student) []dto.StudentInput {
	inputs := make([]dto.StudentInput, 0, len(students))
	for _, s := range students {
		inputs = append(inputs, dto.StudentInput{
			ID:              s.ID,
			FirstName:       s.FirstName,
			Surname:         s.Surname,
			FullName:        s.FullName,
			Class:           s.PriorClass,
			Gender:          s.Gender,
			Academic:        s.Academic,
			Behaviour:       s.Behaviour,
			PairRequest:     s.PairRequest,
			SeparateRequest: s.SeparateRequest,
		})
	}
	return inputs
}

func printProposal(out io.Writer, p *models.Proposal) {
	fmt.Fprintf(out, "Seed %d\n\n", p.Seed)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tCLASS\tSIZE\tGENDER\tACADEMIC\tBEHAVIOUR")
	for _, group := range p.Generated.Groups {
		for i, class := range group.Classes {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
				group.Name, i+1, class.Size(),
				summarize(class.Stats.Gender),
				summarize(class.Stats.Academic),
				summarize(class.Stats.Behaviour))
		}
	}
	_ = w.Flush()

	violations := 0
	for _, group := range p.Generated.Groups {
		for _, class := range group.Classes {
			violations += len(allocation.SeparationViolations(class, p.Requests))
		}
	}
	fmt.Fprintf(out, "\nSeparation violations: %d\n", violations)
	if len(p.Unplaced) > 0 {
		fmt.Fprintf(out, "Unplaced students: %d\n", len(p.Unplaced))
	}
	for _, warning := range p.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
}

func summarize(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
