package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Errors
var (
	ErrSessionFileMissing = errors.New("session file not found")
	ErrSessionMalformed   = errors.New("session file is malformed")
)

// Cookie is a single browser cookie record in the saved session state.
// Fields beyond name/value are optional and omitted when absent so a
// normalized file round-trips byte-for-byte.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionState is the browser session-state shape: a cookies array plus an
// origins array (local/session storage snapshots, carried opaquely).
type SessionState struct {
	Cookies []Cookie          `json:"cookies"`
	Origins []json.RawMessage `json:"origins"`
}

// FileStore loads and persists session state from a JSON file. A bare cookie
// array is accepted on read and rewritten in place into the session-state
// shape, so future loads skip re-normalization.
type FileStore struct {
	path string
}

// NewFileStore creates a session store backed by the given file
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Exists checks whether the session file is present
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the session state, normalizing a bare cookie array into the
// session-state shape and persisting the normalized form.
func (s *FileStore) Load() (*SessionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionFileMissing, s.path)
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrSessionMalformed)
	}

	switch trimmed[0] {
	case '[':
		// Raw cookie list: wrap into the session-state shape and rewrite
		var cookies []Cookie
		if err := json.Unmarshal(data, &cookies); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionMalformed, err)
		}
		state := &SessionState{
			Cookies: cookies,
			Origins: []json.RawMessage{},
		}
		if err := s.Save(state); err != nil {
			return nil, fmt.Errorf("failed to rewrite normalized session file: %w", err)
		}
		return state, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionMalformed, err)
		}
		if _, ok := probe["cookies"]; !ok {
			return nil, fmt.Errorf("%w: expected a top-level 'cookies' key", ErrSessionMalformed)
		}
		var state SessionState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionMalformed, err)
		}
		if state.Origins == nil {
			state.Origins = []json.RawMessage{}
		}
		return &state, nil
	default:
		return nil, fmt.Errorf("%w: expected a JSON object or array", ErrSessionMalformed)
	}
}

func marshalState(state *SessionState) ([]byte, error) {
	if state.Origins == nil {
		state.Origins = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session state: %w", err)
	}
	return data, nil
}

func unmarshalState(data []byte) (*SessionState, error) {
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionMalformed, err)
	}
	if state.Origins == nil {
		state.Origins = []json.RawMessage{}
	}
	return &state, nil
}

// Save writes the session state to the backing file
func (s *FileStore) Save(state *SessionState) error {
	data, err := marshalState(state)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
