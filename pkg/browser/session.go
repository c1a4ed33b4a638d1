package browser

import (
	"time"

	"birdwatcher/pkg/auth"
)

// Element is one matched feed-item container in the rendered page
type Element interface {
	// Text returns the inner text of the first descendant matching selector
	Text(selector string) (string, error)
	// Attr returns the named attribute of the first descendant matching selector
	Attr(selector, name string) (string, error)
}

// Session drives one authenticated browser page. Implementations are
// blocking and synchronous; the extractor owns the lifecycle and always
// calls Close.
type Session interface {
	// Navigate loads the URL and waits for the page load event, bounded by timeout
	Navigate(url string, timeout time.Duration) error
	// URL returns the page's current resolved URL
	URL() (string, error)
	// WaitFor blocks until at least one node matches selector, bounded by timeout
	WaitFor(selector string, timeout time.Duration) error
	// QueryAll returns all nodes currently matching selector
	QueryAll(selector string) ([]Element, error)
	// ScrollToBottom scrolls the viewport by one full page height
	ScrollToBottom() error
	// PageHeight reports the document's current scroll height
	PageHeight() (int, error)
	// DumpDiagnostics writes an HTML snapshot to prefix.html and a full-page
	// screenshot to prefix.png
	DumpDiagnostics(pathPrefix string) error
	// Close releases the page and the underlying browser
	Close() error
}

// Opener opens an authenticated session from saved session state
type Opener interface {
	Open(state *auth.SessionState) (Session, error)
}
