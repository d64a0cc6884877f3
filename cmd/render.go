package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bitlatte/blogserve/internal/content"
	"github.com/Bitlatte/blogserve/internal/model"
)

var renderCmd = &cobra.Command{
	Use:   "render <slug>",
	Short: "Renders a single post to standard output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := model.ParseKey(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), appConfig, logEnv)
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())

		page, err := a.cache.Get(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("%s: %w", content.KindOf(err), err)
		}
		_, err = cmd.OutOrStdout().Write(page.HTML)
		return err
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
