package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"birdwatcher/pkg/auth"
	"birdwatcher/pkg/browser"
	"birdwatcher/pkg/extractor"
	"birdwatcher/pkg/ingest"
	"birdwatcher/pkg/logger"
	"birdwatcher/pkg/store"
)

var crawlLimit int

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl [username]",
	Short: "Crawl a single account once and store new posts",
	Long: `Crawl a single account's feed immediately, without the scheduler.

The account does not need to be subscribed; it is created on first
ingestion. Useful for smoke-testing session credentials and selectors.`,
	Example: `  # Crawl one account with the configured post limit
  birdwatcher crawl nasa

  # Crawl with an explicit limit
  birdwatcher crawl nasa --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().IntVar(&crawlLimit, "limit", 0, "maximum posts to extract (default from config)")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	username := args[0]
	limit := crawlLimit
	if limit <= 0 {
		limit = cfg.Crawl.MaxPosts
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	creds := auth.NewFileStore(cfg.Auth.SessionFile)
	ext := extractor.New(browser.NewRodOpener(cfg.Crawl.Headless), creds, &cfg.Crawl, log)
	svc := ingest.NewService(st, ext, log)

	log.WithField("username", username).Info("starting one-shot crawl")

	newPosts, err := svc.FetchAndStore(username, limit)
	if err != nil {
		return fmt.Errorf("crawl failed for %s: %w", username, err)
	}

	fmt.Printf("stored %d new post(s) for %s\n", newPosts, username)
	return nil
}
