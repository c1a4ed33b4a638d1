package ingest

import (
	"errors"
	"sync"
	"testing"
	"time"

	"birdwatcher/pkg/models"
	"birdwatcher/pkg/store"
)

// memStore is an in-memory Store for ingestion tests
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	posts    []models.Post
	nextID   uint

	existsErr error
	createErr error
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*models.Account), nextID: 1}
}

func (m *memStore) FindAccount(username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[username]; ok {
		return account, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateAccount(username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := &models.Account{ID: m.nextID, Username: username}
	m.nextID++
	m.accounts[username] = account
	return account, nil
}

func (m *memStore) DeleteAccount(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return store.ErrNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *memStore) ListAccounts() ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make([]models.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

func (m *memStore) PostExists(accountID uint, content string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, post := range m.posts {
		if post.AccountID == accountID && post.Content == content {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreatePost(accountID uint, content string, timestamp time.Time) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	post := models.Post{ID: m.nextID, AccountID: accountID, Content: content, Timestamp: timestamp}
	m.nextID++
	m.posts = append(m.posts, post)
	return &post, nil
}

func (m *memStore) ListPosts(username string, read *bool) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Post(nil), m.posts...), nil
}

func (m *memStore) SetPostRead(id uint, read bool) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].ID == id {
			m.posts[i].Read = read
			return &m.posts[i], nil
		}
	}
	return nil, store.ErrNotFound
}

// fakeFetcher returns a canned batch or error
type fakeFetcher struct {
	items []models.FeedItem
	err   error
	calls int
}

func (f *fakeFetcher) Extract(username string, maxItems int) ([]models.FeedItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func batch(contents ...string) []models.FeedItem {
	items := make([]models.FeedItem, 0, len(contents))
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range contents {
		items = append(items, models.FeedItem{
			Content:   content,
			Timestamp: ts.Add(-time.Duration(i) * time.Minute),
		})
	}
	return items
}

func TestIngestStoresNewPosts(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, &fakeFetcher{}, nil)

	count, err := svc.Ingest("nasa", batch("post one", "post two"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 new posts, got %d", count)
	}
	if len(st.posts) != 2 {
		t.Errorf("Expected 2 stored posts, got %d", len(st.posts))
	}
}

func TestIngestCreatesAccountLazily(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, &fakeFetcher{}, nil)

	if _, err := svc.Ingest("newcomer", batch("hello")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, err := st.FindAccount("newcomer"); err != nil {
		t.Errorf("Expected account to be created, got %v", err)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, &fakeFetcher{}, nil)

	items := batch("post one", "post two")
	if _, err := svc.Ingest("nasa", items); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	count, err := svc.Ingest("nasa", items)
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 new posts on re-ingestion, got %d", count)
	}
	if len(st.posts) != 2 {
		t.Errorf("Expected 2 stored posts after re-ingestion, got %d", len(st.posts))
	}
}

func TestIngestOverlappingBatch(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, &fakeFetcher{}, nil)

	if _, err := svc.Ingest("nasa", batch("old post")); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	count, err := svc.Ingest("nasa", batch("new post", "old post"))
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 new post from overlapping batch, got %d", count)
	}
}

func TestIngestSkipsFailedItems(t *testing.T) {
	st := newMemStore()
	st.createErr = errors.New("disk full")
	svc := NewService(st, &fakeFetcher{}, nil)

	count, err := svc.Ingest("nasa", batch("post one", "post two"))
	if err != nil {
		t.Fatalf("Expected per-item failures to be absorbed, got %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 new posts when every insert fails, got %d", count)
	}
}

func TestFetchAndStorePropagatesExtractionError(t *testing.T) {
	st := newMemStore()
	fetcher := &fakeFetcher{err: errors.New("session expired")}
	svc := NewService(st, fetcher, nil)

	_, err := svc.FetchAndStore("nasa", 20)
	if err == nil {
		t.Fatal("Expected extraction error to propagate")
	}
	if len(st.posts) != 0 {
		t.Errorf("Expected no posts stored on failed extraction, got %d", len(st.posts))
	}
}

func TestFetchAndStoreStoresExtractedItems(t *testing.T) {
	st := newMemStore()
	fetcher := &fakeFetcher{items: batch("a", "b", "c")}
	svc := NewService(st, fetcher, nil)

	count, err := svc.FetchAndStore("nasa", 20)
	if err != nil {
		t.Fatalf("FetchAndStore failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 new posts, got %d", count)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected 1 extraction, got %d", fetcher.calls)
	}
}
