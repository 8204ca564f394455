// Package site loads the blog profile shown to agents in API messages.
package site

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes the blog and its author
type Profile struct {
	Blog struct {
		Title       string `yaml:"title"`
		Tagline     string `yaml:"tagline"`
		Description string `yaml:"description"`
		AuthorName  string `yaml:"author_name"`
	} `yaml:"blog"`
}

// Default returns the profile used when no site file exists
func Default() *Profile {
	p := &Profile{}
	p.Blog.Title = "Agent Blog"
	p.Blog.AuthorName = "the blog author"
	return p
}

// Load reads a site profile from path. A missing file yields Default().
func Load(path string) (*Profile, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read site file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a site profile, rejecting unknown keys
func Parse(data []byte) (*Profile, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse site file: %w", err)
	}
	if p.Blog.AuthorName == "" {
		return nil, fmt.Errorf("site file: blog.author_name is required")
	}
	return p, nil
}

// AuthorName is the name used in messages to agents
func (p *Profile) AuthorName() string {
	return p.Blog.AuthorName
}
