package markdown

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

// GlobalAttributes is the Attributes key whose entries apply to every
// allowed element.
const GlobalAttributes = "*"

var (
	ErrInvalidAllowList = errors.New("invalid allow-list")
	ErrUnsafeAllowList  = errors.New("unsafe allow-list")
)

//go:embed allowlist.yaml
var defaultAllowList []byte

// Elements that can execute or embed active content. An allow-list naming
// any of them is refused outright.
var forbiddenTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"iframe":   {},
	"frame":    {},
	"object":   {},
	"embed":    {},
	"applet":   {},
	"form":     {},
	"meta":     {},
	"link":     {},
	"base":     {},
	"svg":      {},
	"math":     {},
	"template": {},
}

// AllowList is the versioned policy consumed by the sanitize stage.
type AllowList struct {
	Version           string              `yaml:"version" json:"version"`
	Tags              []string            `yaml:"tags" json:"tags"`
	Attributes        map[string][]string `yaml:"attributes" json:"attributes"`
	URLSchemes        []string            `yaml:"url_schemes" json:"url_schemes"`
	AllowRelativeURLs bool                `yaml:"allow_relative_urls" json:"allow_relative_urls"`
}

// DefaultAllowList returns the embedded allow-list.
func DefaultAllowList() AllowList {
	a, err := ParseAllowList(defaultAllowList)
	if err != nil {
		panic(fmt.Sprintf("markdown: embedded allow-list: %v", err))
	}
	return a
}

// LoadAllowList reads a YAML allow-list from path.
func LoadAllowList(path string) (AllowList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AllowList{}, fmt.Errorf("read allow-list %s: %w", path, err)
	}
	a, err := ParseAllowList(data)
	if err != nil {
		return AllowList{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// ParseAllowList decodes, normalizes and validates a YAML allow-list.
func ParseAllowList(data []byte) (AllowList, error) {
	var a AllowList
	if err := yaml.Unmarshal(data, &a); err != nil {
		return AllowList{}, fmt.Errorf("%w: %v", ErrInvalidAllowList, err)
	}
	a = a.normalize()
	if err := a.Validate(); err != nil {
		return AllowList{}, err
	}
	return a, nil
}

// Validate rejects incomplete lists and lists that would let active content
// through.
func (a AllowList) Validate() error {
	if strings.TrimSpace(a.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidAllowList)
	}
	if len(a.Tags) == 0 {
		return fmt.Errorf("%w: no tags", ErrInvalidAllowList)
	}
	for _, tag := range a.Tags {
		if _, bad := forbiddenTags[strings.ToLower(tag)]; bad {
			return fmt.Errorf("%w: element %q", ErrUnsafeAllowList, tag)
		}
	}
	for el, attrs := range a.Attributes {
		if el != GlobalAttributes && !a.AllowsTag(el) {
			return fmt.Errorf("%w: attributes given for unlisted element %q", ErrInvalidAllowList, el)
		}
		for _, attr := range attrs {
			name := strings.ToLower(attr)
			if strings.HasPrefix(name, "on") || name == "style" || name == "srcdoc" || name == "formaction" {
				return fmt.Errorf("%w: attribute %q on %q", ErrUnsafeAllowList, attr, el)
			}
		}
	}
	for _, scheme := range a.URLSchemes {
		switch strings.ToLower(scheme) {
		case "javascript", "vbscript", "data", "file":
			return fmt.Errorf("%w: url scheme %q", ErrUnsafeAllowList, scheme)
		}
	}
	return nil
}

// AllowsTag reports whether the element survives sanitization.
func (a AllowList) AllowsTag(tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AllowsAttr reports whether attr survives on element tag.
func (a AllowList) AllowsAttr(tag, attr string) bool {
	tag, attr = strings.ToLower(tag), strings.ToLower(attr)
	for _, key := range []string{GlobalAttributes, tag} {
		for _, allowed := range a.Attributes[key] {
			if allowed == attr {
				return true
			}
		}
	}
	return false
}

// Policy compiles the allow-list into a bluemonday policy. Policies are safe
// for concurrent use once built.
func (a AllowList) Policy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(a.Tags...)

	if global := a.Attributes[GlobalAttributes]; len(global) > 0 {
		p.AllowAttrs(global...).Globally()
	}
	for _, el := range sortedKeys(a.Attributes) {
		if el == GlobalAttributes || len(a.Attributes[el]) == 0 {
			continue
		}
		p.AllowAttrs(a.Attributes[el]...).OnElements(el)
	}

	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(a.AllowRelativeURLs)
	if len(a.URLSchemes) > 0 {
		p.AllowURLSchemes(a.URLSchemes...)
	}
	return p
}

// Clone returns a deep copy; the copy shares no slices or maps with a.
func (a AllowList) Clone() AllowList {
	out := a
	out.Tags = append([]string(nil), a.Tags...)
	out.URLSchemes = append([]string(nil), a.URLSchemes...)
	if a.Attributes != nil {
		out.Attributes = make(map[string][]string, len(a.Attributes))
		for el, attrs := range a.Attributes {
			out.Attributes[el] = append([]string(nil), attrs...)
		}
	}
	return out
}

func (a AllowList) normalize() AllowList {
	out := AllowList{
		Version:           strings.TrimSpace(a.Version),
		Tags:              normalizeNames(a.Tags),
		URLSchemes:        normalizeNames(a.URLSchemes),
		AllowRelativeURLs: a.AllowRelativeURLs,
	}
	if len(a.Attributes) > 0 {
		out.Attributes = make(map[string][]string, len(a.Attributes))
		for el, attrs := range a.Attributes {
			key := strings.ToLower(strings.TrimSpace(el))
			out.Attributes[key] = normalizeNames(append(out.Attributes[key], attrs...))
		}
	}
	return out
}

func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
