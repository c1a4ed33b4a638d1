package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"birdwatcher/pkg/logger"
	"birdwatcher/pkg/models"
	"birdwatcher/pkg/store"
)

// TriggerFunc starts a background crawl for an account; it must return
// immediately, with the crawl outcome surfacing only through logs
type TriggerFunc func(username string)

// Server exposes the subscribe/list/mark-read API over the store, plus a
// fire-and-forget manual crawl trigger
type Server struct {
	store   store.Store
	trigger TriggerFunc
	logger  logger.Logger
}

// New creates an API server
func New(st store.Store, trigger TriggerFunc, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Server{store: st, trigger: trigger, logger: log}
}

// postResponse is the wire shape for a post
type postResponse struct {
	ID        uint   `json:"id"`
	Account   string `json:"account"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())

	router.POST("/subscribe/:username", s.subscribe)
	router.DELETE("/unsubscribe/:username", s.unsubscribe)
	router.GET("/accounts", s.listAccounts)
	router.POST("/refresh/:username", s.refresh)
	router.GET("/posts", s.listPosts)
	router.PATCH("/posts/:id/read", s.markRead(true))
	router.PATCH("/posts/:id/unread", s.markRead(false))

	return router
}

// serverError logs the failure and answers with a 500
func (s *Server) serverError(c *gin.Context, err error) {
	s.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) subscribe(c *gin.Context) {
	username := c.Param("username")

	if _, err := s.store.FindAccount(username); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account already subscribed"})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.serverError(c, err)
		return
	}

	account, err := s.store.CreateAccount(username)
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("subscribed to %s", username),
		"account": gin.H{"id": account.ID, "username": account.Username},
	})
}

func (s *Server) unsubscribe(c *gin.Context) {
	username := c.Param("username")

	err := s.store.DeleteAccount(username)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("unsubscribed from %s", username)})
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.store.ListAccounts()
	if err != nil {
		s.serverError(c, err)
		return
	}

	usernames := make([]string, 0, len(accounts))
	for _, account := range accounts {
		usernames = append(usernames, account.Username)
	}
	c.JSON(http.StatusOK, usernames)
}

func (s *Server) refresh(c *gin.Context) {
	username := c.Param("username")

	if _, err := s.store.FindAccount(username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not subscribed"})
			return
		}
		s.serverError(c, err)
		return
	}

	s.trigger(username)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("started crawl for %s in background", username)})
}

func (s *Server) listPosts(c *gin.Context) {
	account := c.Query("account")

	var read *bool
	if readArg := c.Query("read"); readArg != "" {
		val := readArg == "true"
		read = &val
	}

	posts, err := s.store.ListPosts(account, read)
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPostResponses(posts))
}

func (s *Server) markRead(read bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
			return
		}

		_, err = s.store.SetPostRead(uint(id), read)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		if err != nil {
			s.serverError(c, err)
			return
		}

		state := "read"
		if !read {
			state = "unread"
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("post marked as %s", state)})
	}
}

func toPostResponses(posts []models.Post) []postResponse {
	result := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		result = append(result, postResponse{
			ID:        p.ID,
			Account:   p.Account.Username,
			Content:   p.Content,
			Timestamp: p.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Read:      p.Read,
		})
	}
	return result
}
