package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"commentreview/internal/domain"

	"gopkg.in/yaml.v3"
)

// Template names.
const (
	RedactionReview = "redaction_review"
	ThemeExtraction = "theme_extraction"
)

const manifestName = "prompts.yaml"

//go:embed defaults/*.txt
var defaults embed.FS

// Store holds the instruction templates, loaded once.
type Store struct {
	templates map[string]string
}

type manifest struct {
	Templates map[string]string `yaml:"templates"`
}

// Load returns the embedded templates, with any found in dir taking their
// place. dir may hold <name>.txt files and a prompts.yaml manifest that maps
// template names to file names relative to dir.
func Load(dir string) (*Store, error) {
	s := &Store{templates: map[string]string{}}
	for _, name := range []string{RedactionReview, ThemeExtraction} {
		data, err := defaults.ReadFile("defaults/" + name + ".txt")
		if err != nil {
			return nil, fmt.Errorf("read embedded prompt %s: %w", name, err)
		}
		s.templates[name] = string(data)
	}
	if strings.TrimSpace(dir) == "" {
		return s, nil
	}

	files := map[string]string{
		RedactionReview: RedactionReview + ".txt",
		ThemeExtraction: ThemeExtraction + ".txt",
	}
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	switch {
	case err == nil:
		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, manifestName, err)
		}
		for name, file := range m.Templates {
			files[name] = file
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", manifestName, err)
	}

	for name, file := range files {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, fmt.Errorf("%w: prompt %s (%s) is empty", domain.ErrConfig, name, file)
		}
		s.templates[name] = string(data)
	}
	return s, nil
}

// Get returns the named template. An unknown name is a configuration error.
func (s *Store) Get(name string) (string, error) {
	t, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: prompt template %q not found", domain.ErrConfig, name)
	}
	return t, nil
}

// UserMessage wraps one comment in the fixed user turn sent with every prompt.
func UserMessage(comment string) string {
	return "Comment:\n" + comment + "\n\nReturn ONLY the JSON as specified."
}
