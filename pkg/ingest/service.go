package ingest

import (
	"errors"
	"fmt"

	"birdwatcher/pkg/logger"
	"birdwatcher/pkg/models"
	"birdwatcher/pkg/store"
)

// Fetcher produces an ordered, deduplicated batch of feed items for an account
type Fetcher interface {
	Extract(username string, maxItems int) ([]models.FeedItem, error)
}

// Service reconciles extracted batches against persisted state. This is the
// sole place cross-fetch dedup is enforced; the extractor's in-fetch seen-set
// only guards against intra-page repetition.
type Service struct {
	store   store.Store
	fetcher Fetcher
	logger  logger.Logger
}

// NewService creates an ingestion service
func NewService(st store.Store, fetcher Fetcher, log logger.Logger) *Service {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Service{store: st, fetcher: fetcher, logger: log}
}

// FetchAndStore extracts up to limit recent posts for the account and
// persists any that are new, returning the count of newly stored posts.
func (s *Service) FetchAndStore(username string, limit int) (int, error) {
	items, err := s.fetcher.Extract(username, limit)
	if err != nil {
		return 0, err
	}
	return s.Ingest(username, items)
}

// Ingest resolves or creates the account, then reconciles each batch item
// independently: items already stored under (account, content) are skipped
// silently, everything else is persisted. Partial batches never fail the
// whole ingestion.
func (s *Service) Ingest(username string, items []models.FeedItem) (int, error) {
	account, err := s.store.FindAccount(username)
	if errors.Is(err, store.ErrNotFound) {
		account, err = s.store.CreateAccount(username)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve account %q: %w", username, err)
	}

	log := s.logger.WithField("username", username)

	count := 0
	for _, item := range items {
		exists, err := s.store.PostExists(account.ID, item.Content)
		if err != nil {
			log.WithError(err).Warn("existence check failed, skipping item")
			continue
		}
		if exists {
			continue
		}
		if _, err := s.store.CreatePost(account.ID, item.Content, item.Timestamp); err != nil {
			log.WithError(err).Warn("failed to persist post, skipping item")
			continue
		}
		count++
	}

	log.InfoWithFields("ingestion finished", map[string]interface{}{
		"batch_size": len(items),
		"new_posts":  count,
	})
	return count, nil
}
