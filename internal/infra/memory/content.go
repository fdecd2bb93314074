package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"assessment-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Content is the on-disk shape of a bank fixture: sections map subject ids to
// topic names, groups reference subject ids.
type Content struct {
	Sections  []domain.Section  `yaml:"sections" json:"sections"`
	Groups    []domain.Group    `yaml:"groups" json:"groups"`
	Questions []domain.Question `yaml:"questions" json:"questions"`
}

// LoadContentFile reads a YAML or JSON fixture. Invalid questions are rejected.
func LoadContentFile(path string) (Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Content{}, err
	}
	var content Content
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &content)
	default:
		err = yaml.Unmarshal(data, &content)
	}
	if err != nil {
		return Content{}, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, q := range content.Questions {
		if err := q.Validate(); err != nil {
			return Content{}, err
		}
	}
	content.resolveTopics()
	return content, nil
}

// resolveTopics fills group topics from their subject ids.
func (c *Content) resolveTopics() {
	names := make(map[string]string, len(c.Sections))
	for _, s := range c.Sections {
		names[s.ID] = s.Name
	}
	for i := range c.Groups {
		g := &c.Groups[i]
		for _, id := range g.SubjectIDs {
			if name, ok := names[id]; ok {
				g.Topics = append(g.Topics, name)
			}
		}
	}
}

// StaticContentProvider is a simple provider backed by in-memory data (useful for tests/demos).
type StaticContentProvider struct {
	mu     sync.RWMutex
	bank   []domain.Question
	groups map[string]domain.Group
}

func NewStaticContentProvider(bank []domain.Question, groups []domain.Group) *StaticContentProvider {
	p := &StaticContentProvider{groups: make(map[string]domain.Group, len(groups))}
	p.Replace(bank, groups)
	return p
}

// NewContentProvider wraps a loaded fixture.
func NewContentProvider(content Content) *StaticContentProvider {
	return NewStaticContentProvider(content.Questions, content.Groups)
}

// Replace swaps the served data.
func (p *StaticContentProvider) Replace(bank []domain.Question, groups []domain.Group) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bank = append([]domain.Question(nil), bank...)
	p.groups = make(map[string]domain.Group, len(groups))
	for _, g := range groups {
		p.groups[g.ID] = g
	}
}

func (p *StaticContentProvider) FetchBank(_ context.Context) ([]domain.Question, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Question(nil), p.bank...), nil
}

func (p *StaticContentProvider) FetchGroup(_ context.Context, groupID string) (domain.Group, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if g, ok := p.groups[groupID]; ok {
		return g, nil
	}
	return domain.Group{}, domain.ErrGroupNotFound
}

func (p *StaticContentProvider) ListGroups(_ context.Context) ([]domain.Group, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Group, 0, len(p.groups))
	for _, g := range p.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
