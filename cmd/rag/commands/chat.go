package commands

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"multimodal-rag/internal/tui"
)

var chatDoc, chatImage string

// NewChatCmd creates the interactive chat command.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive terminal UI",
		Long: `Open the terminal UI. Enter keys, pick a document and/or image, press
ctrl+s to index, then ask questions. Logs go to the configured log file.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
	cmd.Flags().StringVar(&chatDoc, "doc", "", "Prefill the document path")
	cmd.Flags().StringVar(&chatImage, "image", "", "Prefill the image path")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := setup(true)
	if err != nil {
		return err
	}
	defer a.close()

	m := tui.New(cmd.Context(), a.session, tui.Options{
		Models:   a.cfg.LLM.Models,
		Settings: a.cfg.ResolveSettings(),
		Document: chatDoc,
		Image:    chatImage,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
