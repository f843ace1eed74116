package providers

import (
	"strings"
)

// Kind selects the pipeline a provider feeds.
type Kind string

const (
	// KindGeneral providers feed the breaking-news pipeline.
	KindGeneral Kind = "general"
	// KindLebanon providers feed the Lebanese political-headlines pipeline.
	KindLebanon Kind = "lebanon"
)

const websitePlaceholder = "{website}"

// DefaultFallbackTemplates are tried in order when a provider's primary feed URL fails.
var DefaultFallbackTemplates = []string{
	websitePlaceholder + "/feed",
	websitePlaceholder + "/rss",
	websitePlaceholder + "/feed.xml",
	websitePlaceholder + "/rss.xml",
	websitePlaceholder + "/feeds/all.xml",
}

// Provider is one entry of the Source Registry.
type Provider struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Kind      Kind   `json:"kind" yaml:"kind"`
	SourceURL string `json:"source_url" yaml:"source_url"`
	Website   string `json:"website" yaml:"website"`
	// Category is the fixed category of every headline from this provider.
	// Empty means the classifier derives it.
	Category string `json:"category" yaml:"category"`
	// BreakingKeywords is the provider's urgency keyword set. Empty means the provider never yields breaking items.
	BreakingKeywords  []string          `json:"breaking_keywords" yaml:"breaking_keywords"`
	FallbackTemplates []string          `json:"fallback_templates" yaml:"fallback_templates"`
	Headers           map[string]string `json:"headers" yaml:"headers"`
}

// FixedCategory reports the provider's fixed category, if any.
func (p Provider) FixedCategory() (string, bool) {
	c := strings.TrimSpace(p.Category)
	return c, c != ""
}

// FallbackURLs expands the provider's fallback templates against its website root.
// Providers without a website have no fallbacks.
func (p Provider) FallbackURLs() []string {
	root := strings.TrimRight(strings.TrimSpace(p.Website), "/")
	if root == "" {
		return nil
	}

	templates := p.FallbackTemplates
	if len(templates) == 0 {
		templates = DefaultFallbackTemplates
	}

	urls := make([]string, 0, len(templates))
	for _, tpl := range templates {
		tpl = strings.TrimSpace(tpl)
		if tpl == "" {
			continue
		}
		u := strings.ReplaceAll(tpl, websitePlaceholder, root)
		if u == p.SourceURL {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

// Headers returns the request headers configured for the provider.
func Headers(cfg Provider) map[string]string {
	if len(cfg.Headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		out[k] = v
	}
	return out
}
