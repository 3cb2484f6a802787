package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "radiobot",
	Short: "Multi-source music download service with an autonomous radio loop",
	Long: `radiobot resolves music queries against several upstream sources
(YouTube, YouTube Music, SoundCloud, Internet Archive, Deezer previews,
LibriVox audiobooks) with caching, retry governance, and provider fallback.

Examples:
  radiobot fetch "daft punk around the world"
  radiobot fetch "moby dick" --long-form --source librivox
  radiobot radio --out ./radio-drops
  radiobot serve --radio`,
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}
