package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"birdwatcher/pkg/auth"
)

// RodOpener opens headless Chromium sessions via go-rod, injecting the saved
// cookies before any navigation happens.
type RodOpener struct {
	headless bool
}

// NewRodOpener creates a session opener backed by go-rod
func NewRodOpener(headless bool) *RodOpener {
	return &RodOpener{headless: headless}
}

// Open launches a browser, applies the session cookies, and returns a page session
func (o *RodOpener) Open(state *auth.SessionState) (Session, error) {
	l := launcher.New().Headless(o.headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if err := b.SetCookies(cookieParams(state.Cookies)); err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to set session cookies: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &rodSession{browser: b, launcher: l, page: page}, nil
}

// cookieParams converts saved session cookies into CDP cookie parameters
func cookieParams(cookies []auth.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		switch c.SameSite {
		case "Lax":
			p.SameSite = proto.NetworkCookieSameSiteLax
		case "Strict":
			p.SameSite = proto.NetworkCookieSameSiteStrict
		case "None":
			p.SameSite = proto.NetworkCookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}

type rodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
}

func (s *rodSession) Navigate(url string, timeout time.Duration) error {
	page := s.page.Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page load of %s timed out: %w", url, err)
	}
	return nil
}

func (s *rodSession) URL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", fmt.Errorf("failed to query page info: %w", err)
	}
	return info.URL, nil
}

func (s *rodSession) WaitFor(selector string, timeout time.Duration) error {
	if _, err := s.page.Timeout(timeout).Element(selector); err != nil {
		return fmt.Errorf("no node matched %q within %s: %w", selector, timeout, err)
	}
	return nil
}

func (s *rodSession) QueryAll(selector string) ([]Element, error) {
	els, err := s.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query for %q failed: %w", selector, err)
	}
	result := make([]Element, 0, len(els))
	for _, el := range els {
		result = append(result, &rodElement{el: el})
	}
	return result, nil
}

func (s *rodSession) ScrollToBottom() error {
	_, err := s.page.Eval(`() => window.scrollBy(0, document.body.scrollHeight)`)
	return err
}

func (s *rodSession) PageHeight() (int, error) {
	res, err := s.page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (s *rodSession) DumpDiagnostics(pathPrefix string) error {
	if err := os.MkdirAll(filepath.Dir(pathPrefix), 0755); err != nil {
		return fmt.Errorf("failed to create diagnostics directory: %w", err)
	}

	html, err := s.page.HTML()
	if err != nil {
		return fmt.Errorf("failed to capture page HTML: %w", err)
	}
	if err := os.WriteFile(pathPrefix+".html", []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write HTML snapshot: %w", err)
	}

	shot, err := s.page.Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.WriteFile(pathPrefix+".png", shot, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}

	return nil
}

func (s *rodSession) Close() error {
	_ = s.page.Close()
	err := s.browser.Close()
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	return err
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(selector string) (string, error) {
	child, err := e.find(selector)
	if err != nil {
		return "", err
	}
	return child.Text()
}

func (e *rodElement) Attr(selector, name string) (string, error) {
	child, err := e.find(selector)
	if err != nil {
		return "", err
	}
	attr, err := child.Attribute(name)
	if err != nil {
		return "", fmt.Errorf("failed to read attribute %q: %w", name, err)
	}
	if attr == nil {
		return "", fmt.Errorf("attribute %q not present", name)
	}
	return *attr, nil
}

// find locates the first descendant matching selector without waiting for it
// to appear; per-item extraction must not stall the pagination loop.
func (e *rodElement) find(selector string) (*rod.Element, error) {
	found, child, err := e.el.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("lookup of %q failed: %w", selector, err)
	}
	if !found {
		return nil, fmt.Errorf("no descendant matched %q", selector)
	}
	return child, nil
}
