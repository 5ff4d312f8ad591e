package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trace-go/internal/app"
	"trace-go/internal/dataset"
	"trace-go/internal/matcher"
	"trace-go/internal/types"
)

var (
	flagTop      int
	flagAction   string
	flagObjects  []string
	flagLocation string
	flagLimit    int
)

var seedCmd = &cobra.Command{
	Use:   "seed <xlsx>",
	Short: "Load analysis records from a workbook into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, loc, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := app.Seed(cmd.Context(), db, args[0], loc, false, newLogger().Component("seed"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d records into %s\n", n, cfg.DatabasePath)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <xlsx>",
	Short: "Write every stored record to a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, _, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		if err := dataset.Export(args[0], records); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(records), args[0])
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print corpus statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, loc, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, dataset.Summarize(records, flagTop, loc))
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Score stored records against search parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, _, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.ListAll(cmd.Context())
		if err != nil {
			return err
		}

		matches := matcher.Match(searchParams(), records)
		if flagLimit > 0 && len(matches) > flagLimit {
			matches = matches[:flagLimit]
		}
		if len(matches) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "no matching records")
		}
		for _, m := range matches {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s  %s  [%s]\n",
				m.Score, m.Record.SentAt.Format("2006-01-02 15:04"), m.Record.Analysis.Summary, strings.Join(m.MatchedFields, ", "))
		}
		return nil
	},
}

func searchParams() types.SearchParameters {
	p := types.SearchParameters{TargetObjects: []string{}}
	if flagAction != "" {
		p.TargetAction = &flagAction
	}
	if flagLocation != "" {
		p.TargetLocation = &flagLocation
	}
	p.TargetObjects = append(p.TargetObjects, flagObjects...)
	return p
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	summaryCmd.Flags().IntVar(&flagTop, "top", 10, "values listed per field")

	searchCmd.Flags().StringVar(&flagAction, "action", "", "action verb, e.g. left")
	searchCmd.Flags().StringSliceVar(&flagObjects, "object", nil, "object to look for (repeatable)")
	searchCmd.Flags().StringVar(&flagLocation, "location", "", "location, e.g. kitchen")
	searchCmd.Flags().IntVar(&flagLimit, "limit", 10, "maximum matches printed")

	rootCmd.AddCommand(seedCmd, exportCmd, summaryCmd, searchCmd)
}
