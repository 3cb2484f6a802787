package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"radiobot/internal/media"
	"radiobot/internal/orchestrator"
	"radiobot/internal/shutdown"
	"radiobot/pkg/utils"
)

var (
	fetchSource   string
	fetchLongForm bool
)

// fetchCmd resolves one query and leaves the file in the downloads dir.
var fetchCmd = &cobra.Command{
	Use:   "fetch [query]",
	Short: "Download a single track or long-form item",
	Long: `Resolve a query against the configured sources and download the
best match into the downloads directory.

Examples:
  radiobot fetch "daft punk around the world"
  radiobot fetch "dQw4w9WgXcQ"
  radiobot fetch "war and peace" --long-form --source librivox`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sh := shutdown.New()
		sh.Listen()

		a, err := buildApp(sh.Context())
		if err != nil {
			return err
		}
		defer a.close()

		req := orchestrator.Request{Query: args[0], LongForm: fetchLongForm}
		if fetchSource != "" {
			src, err := media.ParseSource(fetchSource)
			if err != nil {
				return err
			}
			req.Preferred = src
		}

		out, err := a.orch.Download(sh.Context(), req)
		if err != nil {
			return err
		}

		fmt.Printf("%s [%s] (%s)\n%s\n",
			out.Meta.DisplayName(), out.Meta.Source,
			utils.FormatDuration(out.Meta.Duration), out.FilePath)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSource, "source", "", "preferred source (youtube, ytmusic, soundcloud, archive, deezer, librivox)")
	fetchCmd.Flags().BoolVar(&fetchLongForm, "long-form", false, "treat the query as an audiobook/podcast request")
	rootCmd.AddCommand(fetchCmd)
}
