package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "auth.json"))

	_, err := store.Load()
	if !errors.Is(err, ErrSessionFileMissing) {
		t.Errorf("Expected ErrSessionFileMissing, got %v", err)
	}
	if store.Exists() {
		t.Error("Expected Exists to be false for a missing file")
	}
}

func TestLoadFullSessionState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	content := `{
  "cookies": [
    {"name": "auth_token", "value": "abc123", "domain": ".x.com", "path": "/", "httpOnly": true, "secure": true, "sameSite": "None"}
  ],
  "origins": []
}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write session file: %v", err)
	}

	state, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Failed to load session state: %v", err)
	}

	if len(state.Cookies) != 1 {
		t.Fatalf("Expected 1 cookie, got %d", len(state.Cookies))
	}
	cookie := state.Cookies[0]
	if cookie.Name != "auth_token" || cookie.Value != "abc123" {
		t.Errorf("Unexpected cookie: %+v", cookie)
	}
	if cookie.Domain != ".x.com" || !cookie.HTTPOnly || !cookie.Secure || cookie.SameSite != "None" {
		t.Errorf("Cookie attributes not preserved: %+v", cookie)
	}
}

func TestLoadBareCookieArrayNormalizesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	content := `[{"name": "auth_token", "value": "abc123"}, {"name": "ct0", "value": "def456"}]`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write session file: %v", err)
	}

	store := NewFileStore(path)
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Failed to load bare cookie array: %v", err)
	}
	if len(state.Cookies) != 2 {
		t.Fatalf("Expected 2 cookies, got %d", len(state.Cookies))
	}

	// The file must now hold the full session-state shape
	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read rewritten file: %v", err)
	}

	var onDisk map[string]json.RawMessage
	if err := json.Unmarshal(rewritten, &onDisk); err != nil {
		t.Fatalf("Rewritten file is not a JSON object: %v", err)
	}
	if _, ok := onDisk["cookies"]; !ok {
		t.Error("Rewritten file missing 'cookies' key")
	}
	if _, ok := onDisk["origins"]; !ok {
		t.Error("Rewritten file missing 'origins' key")
	}
	if !strings.Contains(string(rewritten), "\n  ") {
		t.Error("Expected rewritten file to be indented")
	}

	// A second load must parse the normalized shape without another rewrite
	again, err := store.Load()
	if err != nil {
		t.Fatalf("Failed to re-load normalized file: %v", err)
	}
	if len(again.Cookies) != 2 {
		t.Errorf("Expected 2 cookies after re-load, got %d", len(again.Cookies))
	}
}

func TestLoadMalformedFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"invalid json", "{not json"},
		{"invalid array", "[{broken"},
		{"scalar", `"just a string"`},
		{"object without cookies key", `{"origins": []}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "auth.json")
			if err := os.WriteFile(path, []byte(test.content), 0600); err != nil {
				t.Fatalf("Failed to write session file: %v", err)
			}

			_, err := NewFileStore(path).Load()
			if !errors.Is(err, ErrSessionMalformed) {
				t.Errorf("Expected ErrSessionMalformed, got %v", err)
			}
		})
	}
}

func TestSaveRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	store := NewFileStore(path)

	err := store.Save(&SessionState{
		Cookies: []Cookie{{Name: "auth_token", Value: "abc123"}},
	})
	if err != nil {
		t.Fatalf("Failed to save session state: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat session file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected permissions 0600, got %o", perm)
	}
}

func TestSaveNilOriginsSerializesAsEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	store := NewFileStore(path)

	if err := store.Save(&SessionState{Cookies: []Cookie{{Name: "a", Value: "b"}}}); err != nil {
		t.Fatalf("Failed to save session state: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}
	if strings.Contains(string(data), `"origins": null`) {
		t.Error("Expected origins to serialize as [], got null")
	}
}
