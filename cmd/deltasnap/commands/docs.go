package commands

import (
	"bytes"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}

var docsCmd = &cobra.Command{
	Use:          "docs",
	Short:        "Generate markdown documentation for all commands",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// No config loading for this command
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		if output == "" {
			return writeDocs(rootCmd, os.Stdout)
		}
		var buf bytes.Buffer
		if err := writeDocs(rootCmd, &buf); err != nil {
			return err
		}
		return os.WriteFile(output, buf.Bytes(), 0666)
	},
}

var inheritedSection = regexp.MustCompile(`(?s)### (SEE ALSO|Options inherited from parent commands).*`)

// writeDocs writes the docs of cmd and all its subcommands as one document
func writeDocs(cmd *cobra.Command, w io.Writer) error {
	if cmd.Name() == "completion" || cmd.Name() == "help" {
		return nil
	}
	var b bytes.Buffer
	if err := doc.GenMarkdown(cmd, &b); err != nil {
		return err
	}
	if _, err := w.Write(inheritedSection.ReplaceAll(b.Bytes(), nil)); err != nil {
		return err
	}
	for _, c := range cmd.Commands() {
		if err := writeDocs(c, w); err != nil {
			return err
		}
	}
	return nil
}
