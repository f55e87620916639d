package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/wikislob/wikislob/pkg/archive"
	"github.com/wikislob/wikislob/pkg/fetch"
	"github.com/wikislob/wikislob/pkg/snapshot"
)

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all article titles of the collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.onlineFetcher()
			if err != nil {
				return err
			}
			return f.List(a.outFile)
		},
	}
}

func fetchCmd(a *app) *cobra.Command {
	var opts fetch.FetchOptions

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch articles by title",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.onlineFetcher()
			if err != nil {
				return err
			}
			opts.InFile = a.inFile
			opts.OutFile = a.outFile
			return f.Fetch(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Titles, "titles", "t", "", `titles separated by "|", or @file with one per line`)
	cmd.Flags().BoolVarP(&opts.MissingOnly, "missing", "m", false, "fetch only titles missing from the input snapshot")
	cmd.Flags().BoolVarP(&opts.Normalize, "normalize", "n", false, "normalize fetched content")
	return cmd
}

func updateCmd(a *app) *cobra.Command {
	var opts fetch.UpdateOptions

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh a snapshot against the recent-changes feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.onlineFetcher()
			if err != nil {
				return err
			}
			opts.InFile = a.inFile
			opts.OutFile = a.outFile
			_, err = f.Update(opts)
			return err
		},
	}

	cmd.Flags().IntVarP(&opts.Start, "start", "s", 0, "start from this snapshot index")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 0, "process at most this many entries")
	cmd.Flags().StringVarP(&opts.Timestamp, "timestamp", "T", "", "change-feed start timestamp (default: snapshot modification time)")
	cmd.Flags().BoolVarP(&opts.Normalize, "normalize", "n", false, "normalize refreshed content")
	return cmd
}

func slobCmd(a *app) *cobra.Command {
	var goldendict bool

	cmd := &cobra.Command{
		Use:   "slob",
		Short: "Write the offline dictionary archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.inFile == "" {
				return errors.New("slob requires an input snapshot")
			}

			rd, err := snapshot.Open(a.inFile)
			if err != nil {
				return err
			}
			defer rd.Close()

			prog := a.progress()
			entries, _, err := archive.Prepare(rd, a.cfg.Collection.Prefix, prog)
			if err != nil {
				return err
			}
			return archive.Build(entries, a.outFile, &a.cfg.Archive, goldendict, prog)
		},
	}

	cmd.Flags().BoolVarP(&goldendict, "goldendict", "g", false, "rewrite entry links for GoldenDict")
	return cmd
}

func normalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Re-run the content normalizer over a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.offlineFetcher()
			if err != nil {
				return err
			}
			return f.NormalizeSnapshot(a.inFile, a.outFile)
		},
	}
}
