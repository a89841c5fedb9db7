// Package provisioning reads bulk account manifests for the operator CLI.
package provisioning

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nw-com/nw-patrol/internal/domain"
)

// Entry is one account in a manifest. The password comes either inline or from
// the environment variable named by PasswordEnv.
type Entry struct {
	Email       string   `yaml:"email"`
	Password    string   `yaml:"password"`
	PasswordEnv string   `yaml:"passwordEnv"`
	Name        string   `yaml:"name"`
	Role        string   `yaml:"role"`
	Title       string   `yaml:"title"`
	Communities []string `yaml:"communities"`
}

// Manifest is the document accepted by "provision apply".
type Manifest struct {
	Users []Entry `yaml:"users"`
}

// LoadManifest reads and decodes the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(bytes.NewReader(data))
}

// ParseManifest decodes a manifest. Unknown keys are rejected so that a typo
// does not silently drop a field.
func ParseManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Users) == 0 {
		return nil, errors.New("manifest lists no users")
	}

	seen := make(map[string]int, len(m.Users))
	for i, u := range m.Users {
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if key == "" {
			continue // reported per entry by the validator
		}
		if first, dup := seen[key]; dup {
			return nil, fmt.Errorf("users[%d]: email %q already listed at users[%d]", i, u.Email, first)
		}
		seen[key] = i
		if u.Password != "" && u.PasswordEnv != "" {
			return nil, fmt.Errorf("users[%d]: set only one of password and passwordEnv", i)
		}
	}
	return &m, nil
}

// Input resolves the entry into a create request. lookup reads environment
// variables and is os.LookupEnv outside tests.
func (e Entry) Input(lookup func(string) (string, bool)) (domain.CreateUserInput, error) {
	password := e.Password
	if e.PasswordEnv != "" {
		value, ok := lookup(e.PasswordEnv)
		if !ok {
			return domain.CreateUserInput{}, fmt.Errorf("password environment variable %s is not set", e.PasswordEnv)
		}
		password = value
	}

	return domain.CreateUserInput{
		Email:       e.Email,
		Password:    password,
		Name:        e.Name,
		Role:        e.Role,
		Title:       e.Title,
		Communities: e.Communities,
	}, nil
}
