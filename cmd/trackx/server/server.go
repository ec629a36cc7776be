package server

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
	"kubegems.io/trackx/pkg/tracker"
)

// DefaultServerName is used when neither a server nor a current one is selected.
const DefaultServerName = "default"

func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Tracking server management",
		Long:  "Tracking server management",
	}
	cmd.AddCommand(NewServerAddCmd())
	cmd.AddCommand(NewServerListCmd())
	cmd.AddCommand(NewServerRemoveCmd())
	cmd.AddCommand(NewServerUseCmd())
	return cmd
}

// ServerFile is the on-disk form of the known servers.
type ServerFile struct {
	Current string          `json:"current,omitempty"`
	Servers []ServerDetails `json:"servers,omitempty"`
}

func (f *ServerFile) index(nameOrURL string) int {
	return slices.IndexFunc(f.Servers, func(s ServerDetails) bool {
		return s.Name == nameOrURL || s.URL == nameOrURL
	})
}

type ServerDetails struct {
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Token string `json:"token,omitempty"`
}

// Authorization is the header value for the stored token, empty without one.
func (s ServerDetails) Authorization() string {
	if s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}

var DefaultServerManager = &ServerManager{
	Path: func() string {
		home, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}
		return filepath.Join(home, ".trackx", "servers.json")
	}(),
}

// ServerManager keeps known tracking servers in a JSON file. Every call rereads the file.
type ServerManager struct {
	Path string
}

func normalizeURL(raw string) (string, error) {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url: %s", raw)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

// Set adds or replaces the server with the same name.
func (m *ServerManager) Set(item ServerDetails) error {
	normalized, err := normalizeURL(item.URL)
	if err != nil {
		return err
	}
	item.URL = normalized
	return m.update(func(f *ServerFile) error {
		i := slices.IndexFunc(f.Servers, func(s ServerDetails) bool { return s.Name == item.Name })
		if i < 0 {
			f.Servers = append(f.Servers, item)
		} else {
			f.Servers[i] = item
		}
		return nil
	})
}

// Use marks name as the server picked when none is given.
func (m *ServerManager) Use(name string) error {
	return m.update(func(f *ServerFile) error {
		i := f.index(name)
		if i < 0 {
			return fmt.Errorf("server %s not found", name)
		}
		f.Current = f.Servers[i].Name
		return nil
	})
}

func (m *ServerManager) Get(nameOrURL string) (ServerDetails, error) {
	f, err := m.read()
	if err != nil {
		return ServerDetails{}, err
	}
	if i := f.index(nameOrURL); i >= 0 {
		return f.Servers[i], nil
	}
	return ServerDetails{}, fmt.Errorf("server %s not found", nameOrURL)
}

func (m *ServerManager) Remove(name string) error {
	return m.update(func(f *ServerFile) error {
		i := slices.IndexFunc(f.Servers, func(s ServerDetails) bool { return s.Name == name })
		if i < 0 {
			return fmt.Errorf("server %s not found", name)
		}
		f.Servers = slices.Delete(f.Servers, i, i+1)
		if f.Current == name {
			f.Current = ""
		}
		return nil
	})
}

func (m *ServerManager) List() ([]ServerDetails, string) {
	f, err := m.read()
	if err != nil {
		return nil, ""
	}
	return f.Servers, f.Current
}

// Resolve returns a client for server, which is a url or the name of a stored server.
// An empty server selects the current one, then DefaultServerName.
// A non-empty auth replaces the stored token.
func (m *ServerManager) Resolve(server, auth string) (*tracker.Client, error) {
	if strings.Contains(server, "://") {
		return tracker.NewClient(server, auth), nil
	}
	if server == "" {
		f, err := m.read()
		if err != nil {
			return nil, err
		}
		server = f.Current
		if server == "" {
			server = DefaultServerName
		}
	}
	details, err := m.Get(server)
	if err != nil {
		return nil, err
	}
	if auth == "" {
		auth = details.Authorization()
	}
	return tracker.NewClient(details.URL, auth), nil
}

func (m *ServerManager) read() (*ServerFile, error) {
	f := &ServerFile{}
	content, err := os.ReadFile(m.Path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", m.Path, err)
	}
	return f, nil
}

func (m *ServerManager) update(fn func(f *ServerFile) error) error {
	f, err := m.read()
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	content, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.Path, content, 0o600)
}
