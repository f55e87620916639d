// Command wikislob builds and maintains offline slob dictionaries of a
// MediaWiki-hosted encyclopedia (by default the 1911 Encyclopædia
// Britannica on en.wikisource.org).
//
// Typical workflow:
//
//	wikislob list -o entrylist.txt
//	wikislob fetch -n --titles @entrylist.txt -o data/all.json
//	wikislob update -n -i data/all.json -o data/updated.json
//	wikislob slob -i data/updated.json -o eb1911.slob
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wikislob/wikislob/pkg/config"
	"github.com/wikislob/wikislob/pkg/fetch"
	"github.com/wikislob/wikislob/pkg/logger"
	"github.com/wikislob/wikislob/pkg/progress"
	"github.com/wikislob/wikislob/pkg/wiki"
)

const defaultConfigPath = "config.toml"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the global flags and loaded configuration shared by all
// subcommands.
type app struct {
	cfgPath    string
	inFile     string
	outFile    string
	noProgress bool

	cfg *config.Config
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "wikislob",
		Short:         "Build offline slob dictionaries from a wiki collection",
		Long:          "wikislob fetches encyclopedia articles from a MediaWiki site, normalizes their HTML, keeps a snapshot up to date against the recent-changes feed and packages everything into a slob dictionary archive.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", defaultConfigPath, "TOML configuration file")
	pf.StringVarP(&a.inFile, "infile", "i", "", "input snapshot file")
	pf.StringVarP(&a.outFile, "outfile", "o", "", "output file (default stdout)")
	pf.BoolVarP(&a.noProgress, "no-progress", "N", false, "don't show progress")

	cmd.AddCommand(listCmd(a), fetchCmd(a), updateCmd(a), slobCmd(a), normalizeCmd(a))
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		// The stock configuration covers the default collection; a config
		// file is only required when explicitly named.
		if os.IsNotExist(err) && a.cfgPath == defaultConfigPath {
			cfg = config.Default()
		} else {
			return fmt.Errorf("couldn't load config: %w", err)
		}
	}
	a.cfg = cfg
	logger.Init(&cfg.Logging)
	return nil
}

func (a *app) progress() *progress.Reporter {
	return progress.New(!a.noProgress)
}

// onlineFetcher wires a fetcher to the live wiki site.
func (a *app) onlineFetcher() (*fetch.Fetcher, error) {
	client, err := wiki.New(a.cfg)
	if err != nil {
		return nil, err
	}
	return fetch.New(a.cfg, client, a.progress())
}

// offlineFetcher serves the commands that only transform local files.
func (a *app) offlineFetcher() (*fetch.Fetcher, error) {
	return fetch.New(a.cfg, nil, a.progress())
}
