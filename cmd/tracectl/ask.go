package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"trace-go/internal/app"
	"trace-go/internal/media"
	"trace-go/internal/pipeline"
)

var flagMime string

// eventLine is one JSON line printed per pipeline event.
type eventLine struct {
	Event pipeline.Event `json:"event"`
	Data  any            `json:"data"`
}

var askCmd = &cobra.Command{
	Use:   "ask <audio-file>",
	Short: "Run a recorded voice query through the full pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		name := filepath.Base(path)
		if !media.Audio.Accepts(flagMime, name) {
			return fmt.Errorf("%w: %s", media.ErrUnsupported, name)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger()
		a, err := app.Build(cmd.Context(), cfg, log.Component("app"))
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		enc := json.NewEncoder(cmd.OutOrStdout())
		emit := pipeline.EmitterFunc(func(event pipeline.Event, data any) error {
			return enc.Encode(eventLine{Event: event, Data: data})
		})

		_, err = a.Pipeline.Run(cmd.Context(), pipeline.Request{
			AudioPath:   path,
			MimeType:    media.Audio.Resolve(flagMime, name),
			DisplayName: name,
		}, emit)
		return err
	},
}

func init() {
	askCmd.Flags().StringVar(&flagMime, "mime", "", "audio MIME type (default from extension)")
	rootCmd.AddCommand(askCmd)
}
