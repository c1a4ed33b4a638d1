package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"birdwatcher/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary for accounts and posts
type Store interface {
	FindAccount(username string) (*models.Account, error)
	CreateAccount(username string) (*models.Account, error)
	DeleteAccount(username string) error
	ListAccounts() ([]models.Account, error)

	PostExists(accountID uint, content string) (bool, error)
	CreatePost(accountID uint, content string, timestamp time.Time) (*models.Post, error)
	ListPosts(username string, read *bool) ([]models.Post, error)
	SetPostRead(id uint, read bool) (*models.Post, error)
}

// GormStore implements Store on a GORM-managed SQLite database
type GormStore struct {
	db *gorm.DB
}

// Open connects to the database at path and migrates the schema
func Open(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&models.Account{}, &models.Post{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &GormStore{db: db}, nil
}

// FindAccount looks up an account by username
func (s *GormStore) FindAccount(username string) (*models.Account, error) {
	var account models.Account
	err := s.db.Where("username = ?", username).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account %q: %w", username, err)
	}
	return &account, nil
}

// CreateAccount inserts a new account
func (s *GormStore) CreateAccount(username string) (*models.Account, error) {
	account := models.Account{Username: username}
	if err := s.db.Create(&account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account %q: %w", username, err)
	}
	return &account, nil
}

// DeleteAccount removes an account and all of its posts
func (s *GormStore) DeleteAccount(username string) error {
	account, err := s.FindAccount(username)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("failed to delete posts for %q: %w", username, err)
		}
		if err := tx.Delete(&models.Account{}, account.ID).Error; err != nil {
			return fmt.Errorf("failed to delete account %q: %w", username, err)
		}
		return nil
	})
}

// ListAccounts returns all subscribed accounts
func (s *GormStore) ListAccounts() ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.Order("username").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// PostExists checks whether a post with this content is already stored for
// the account
func (s *GormStore) PostExists(accountID uint, content string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Post{}).
		Where("account_id = ? AND content = ?", accountID, content).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check post existence: %w", err)
	}
	return count > 0, nil
}

// CreatePost inserts a new post. A zero timestamp defaults to ingestion time.
func (s *GormStore) CreatePost(accountID uint, content string, timestamp time.Time) (*models.Post, error) {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	post := models.Post{
		AccountID: accountID,
		Content:   content,
		Timestamp: timestamp,
	}
	if err := s.db.Create(&post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return &post, nil
}

// ListPosts returns posts newest-first, optionally filtered by account
// username and read state
func (s *GormStore) ListPosts(username string, read *bool) ([]models.Post, error) {
	q := s.db.Model(&models.Post{}).Preload("Account").Order("timestamp DESC")
	if username != "" {
		q = q.Joins("JOIN accounts ON accounts.id = posts.account_id").
			Where("accounts.username = ?", username)
	}
	if read != nil {
		q = q.Where("posts.read = ?", *read)
	}

	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// SetPostRead flips the read flag on a post
func (s *GormStore) SetPostRead(id uint, read bool) (*models.Post, error) {
	var post models.Post
	err := s.db.First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post %d: %w", id, err)
	}

	post.Read = read
	if err := s.db.Save(&post).Error; err != nil {
		return nil, fmt.Errorf("failed to update post %d: %w", id, err)
	}
	return &post, nil
}
