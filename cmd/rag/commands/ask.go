package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"multimodal-rag/internal/ingest"
	"multimodal-rag/internal/service"
)

var (
	askDoc     string
	askImage   string
	askModel   string
	askSources bool
)

// NewAskCmd creates the one-shot ask command.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Index the given files and answer one question",
		Long: `Index a document and/or image, answer a single question and print it.

Examples:
  rag ask --doc report.pdf "What were the Q3 results?"
  rag ask --image chart.png --sources "What does the chart show?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
	cmd.Flags().StringVar(&askDoc, "doc", "", "Document to index (.txt or .pdf)")
	cmd.Flags().StringVar(&askImage, "image", "", "Image to index (.png or .jpg)")
	cmd.Flags().StringVar(&askModel, "model", "", "Language model (default from config)")
	cmd.Flags().BoolVar(&askSources, "sources", false, "Print the passages used as context")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.close()

	var up service.Upload
	if askDoc != "" {
		if up.Document, err = ingest.ReadFile(askDoc); err != nil {
			return err
		}
	}
	if askImage != "" {
		if up.Image, err = ingest.ReadFile(askImage); err != nil {
			return err
		}
	}

	settings := a.cfg.ResolveSettings()
	if askModel != "" {
		settings.ModelID = askModel
	}

	ctx := cmd.Context()
	kb, err := a.session.Index(ctx, settings, up)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	ans, err := a.session.Ask(ctx, settings, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ans.Text)
	if askSources {
		for i, src := range ans.Sources {
			fmt.Fprintf(out, "\n--- source %d ---\n%s\n", i+1, src)
		}
	}
	fmt.Fprintf(out, "\n(%d chunks indexed, %s, %s)\n", len(kb.Chunks), settings.ModelID, ans.Latency.Round(time.Millisecond))
	return nil
}
