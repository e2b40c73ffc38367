package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/class-builder-api/internal/dto"
	"github.com/noah-isme/class-builder-api/internal/models"
	"github.com/noah-isme/class-builder-api/pkg/export"
)

// Builder parses rosters and generates proposals.
type Builder interface {
	ParseRoster(ctx context.Context, filename string, r io.Reader) (*dto.ParseRosterResponse, error)
	Build(ctx context.Context, req dto.GenerateClassesRequest) (*models.Proposal, error)
}

// Exporter renders documents and roster templates.
type Exporter interface {
	Render(format models.ExportFormat, doc export.Document) ([]byte, error)
	Template(format models.ExportFormat) ([]byte, string, error)
}

// TokenIssuer mints access tokens.
type TokenIssuer interface {
	Issue(userID string, role models.UserRole, email, fullName string, ttl time.Duration) (string, time.Time, error)
}

// App holds the services the commands run against.
type App struct {
	Builder Builder
	Exports Exporter
	Tokens  TokenIssuer
}

// NewRootCmd creates the top-level "classgen" command.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "classgen",
		Short:         "Build balanced classes from a student roster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newGenerateCmd(app),
		newTemplateCmd(app),
		newTokenCmd(app),
	)

	return root
}
