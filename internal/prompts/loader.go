package prompts

import (
	"bytes"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader manages prompt templates with override support.
// Override directories are checked in order; first match wins; the
// embedded templates are the fallback.
type Loader struct {
	overrideDirs []string
	cache        map[string]*template.Template
	metaCache    map[string]*TemplateMeta
	mu           sync.RWMutex

	watcher *fsnotify.Watcher
}

// TemplateMeta holds frontmatter metadata for a prompt template.
type TemplateMeta struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// NewLoader creates a loader with the given override directories.
func NewLoader(overrideDirs ...string) *Loader {
	return &Loader{
		overrideDirs: overrideDirs,
		cache:        make(map[string]*template.Template),
		metaCache:    make(map[string]*TemplateMeta),
	}
}

// Watch starts invalidating the template cache when files in any override
// directory change, so prompt tuning takes effect without a rebuild.
// Safe to call when no override directories exist; those are skipped.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := 0
	for _, dir := range l.overrideDirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Printf("prompts: cannot watch %s: %v", dir, err)
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return nil
	}

	l.watcher = watcher
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					l.invalidate(filepath.Base(event.Name))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("prompts watcher: %v", err)
			}
		}
	}()
	return nil
}

// Close stops the override watcher, if running.
func (l *Loader) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

func (l *Loader) invalidate(name string) {
	path := filepath.Join("templates", name)
	l.mu.Lock()
	delete(l.cache, path)
	delete(l.metaCache, path)
	l.mu.Unlock()
}

// loadContent loads raw content from override dirs or the embedded FS.
func (l *Loader) loadContent(path string) ([]byte, error) {
	for _, dir := range l.overrideDirs {
		fullPath := filepath.Join(dir, filepath.Base(path))
		if data, err := os.ReadFile(fullPath); err == nil {
			return data, nil
		}
	}
	return fs.ReadFile(embeddedFS, path)
}

// parseFrontmatter splits content into frontmatter and body.
func parseFrontmatter(content []byte) (*TemplateMeta, string, error) {
	str := string(content)

	if !strings.HasPrefix(str, "---\n") {
		return nil, str, nil
	}

	end := strings.Index(str[4:], "\n---\n")
	if end == -1 {
		return nil, str, nil
	}

	frontmatter := str[4 : 4+end]
	body := str[4+end+5:]

	var meta TemplateMeta
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}

	return &meta, body, nil
}

// LoadTemplate loads and parses a template by id (e.g. "plan").
func (l *Loader) LoadTemplate(id string) (*template.Template, *TemplateMeta, error) {
	path := filepath.Join("templates", id+".md")

	l.mu.RLock()
	if tmpl, ok := l.cache[path]; ok {
		meta := l.metaCache[path]
		l.mu.RUnlock()
		return tmpl, meta, nil
	}
	l.mu.RUnlock()

	content, err := l.loadContent(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}

	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	tmpl, err := template.New(id).Parse(body)
	if err != nil {
		return nil, nil, fmt.Errorf("compile template %s: %w", path, err)
	}

	l.mu.Lock()
	l.cache[path] = tmpl
	l.metaCache[path] = meta
	l.mu.Unlock()

	return tmpl, meta, nil
}

// Execute loads and executes a template with the given data.
func (l *Loader) Execute(id string, data interface{}) (string, error) {
	tmpl, _, err := l.LoadTemplate(id)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", id, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// PlanData holds template variables for the planning prompt.
type PlanData struct {
	Prompt string
}

// TaskData holds template variables for the task dispatch prompt.
type TaskData struct {
	Index       int
	Total       int
	Title       string
	Description string
	WantsCode   bool
}

// FixData holds template variables for the failure-diagnosis prompt.
type FixData struct {
	Code  string
	Error string
}

// ReviewData holds template variables for the periodic progress review.
type ReviewData struct {
	Done   int
	Total  int
	Failed int
	Recent string
}
