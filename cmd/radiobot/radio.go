package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"radiobot/internal/media"
	"radiobot/internal/radio"
	"radiobot/internal/shutdown"
	"radiobot/pkg/utils"
)

var radioOut string

// radioCmd runs the radio loop in the foreground, dropping each delivered
// track into a local directory.
var radioCmd = &cobra.Command{
	Use:   "radio",
	Short: "Run the autonomous radio loop",
	Long: `Run the radio loop until interrupted. Each cycle picks a genre,
downloads a matching track, and copies it into the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sh := shutdown.New()
		sh.Listen()

		a, err := buildApp(sh.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := wireRadioOutput(a.radio, radioOut); err != nil {
			return err
		}

		if !a.radio.Start(sh.Context()) {
			return fmt.Errorf("radio loop is already running")
		}

		<-sh.Context().Done()
		a.radio.Stop()
		return nil
	},
}

// wireRadioOutput gives the radio loop a delivery destination: a local
// directory delivered tracks are copied into. Without at least one
// destination the loop idles without ever cycling.
func wireRadioOutput(rc *radio.Controller, dir string) error {
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	rc.Subscribe("local", &dirDestination{dir: dir})
	return nil
}

// dirDestination copies delivered tracks into a directory. The scheduler
// deletes its own copy after delivery.
type dirDestination struct {
	dir string
}

func (d *dirDestination) Deliver(_ context.Context, filePath string, meta media.TrackMetadata) error {
	src, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer src.Close()

	name := utils.SanitizeFilename(meta.DisplayName()) + filepath.Ext(filePath)
	dst, err := os.Create(filepath.Join(d.dir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func init() {
	radioCmd.Flags().StringVar(&radioOut, "out", "radio-tracks", "directory delivered tracks are copied into")
	rootCmd.AddCommand(radioCmd)
}
