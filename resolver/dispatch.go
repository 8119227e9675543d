// Package resolver routes URLs to provider scrapers and runs resolutions
// under timeouts, retries budgets and concurrency limits.
package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"truelink/internal"
	"truelink/providers"
	"truelink/utils"
)

// Rule claims URLs for one scraper, either by literal domain (the host or
// any subdomain of it) or by a host-anchored family regex.
type Rule struct {
	Name    string
	Domains []string
	Pattern *regexp.Regexp
	Scraper providers.Scraper
}

func (r Rule) matches(host, rawURL string) bool {
	for _, d := range r.Domains {
		if utils.HostMatches(host, d) {
			return true
		}
	}
	return r.Pattern != nil && r.Pattern.MatchString(rawURL)
}

// Table is an ordered rule list; the first matching rule wins.
type Table struct {
	rules  []Rule
	byName map[string]providers.Scraper
}

// NewTable builds a table from scrapers in priority order. It rejects
// duplicate names and literal domains claimed by two rules, including a
// domain and one of its parents.
func NewTable(scrapers ...providers.Scraper) (*Table, error) {
	t := &Table{byName: make(map[string]providers.Scraper, len(scrapers))}
	owner := map[string]string{}

	for _, s := range scrapers {
		name := s.Name()
		if _, dup := t.byName[name]; dup {
			return nil, fmt.Errorf("duplicate scraper name %q", name)
		}

		domains := make([]string, 0, len(s.Domains()))
		for _, d := range s.Domains() {
			d = strings.ToLower(strings.TrimSpace(d))
			for claimed, by := range owner {
				if by != name && (utils.HostMatches(d, claimed) || utils.HostMatches(claimed, d)) {
					return nil, fmt.Errorf("domain %q of %s overlaps %q of %s", d, name, claimed, by)
				}
			}
			owner[d] = name
			domains = append(domains, d)
		}

		rule := Rule{Name: name, Domains: domains, Scraper: s}
		if fm, ok := s.(providers.FamilyMatcher); ok {
			rule.Pattern = fm.Family()
		}
		t.rules = append(t.rules, rule)
		t.byName[name] = s
	}
	return t, nil
}

// Dispatch returns the scraper for rawURL. Malformed URLs and URLs no rule
// claims fail with *internal.UnsupportedError.
func (t *Table) Dispatch(rawURL string) (providers.Scraper, error) {
	info, err := utils.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	target := strings.TrimSpace(rawURL)
	for _, r := range t.rules {
		if r.matches(info.Host, target) {
			return r.Scraper, nil
		}
	}
	return nil, internal.NewUnsupportedError(rawURL, "unsupported domain: "+info.Host)
}

// Lookup returns the scraper registered under name.
func (t *Table) Lookup(name string) (providers.Scraper, bool) {
	s, ok := t.byName[strings.ToLower(name)]
	return s, ok
}

// Names returns the scraper names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.rules))
	for _, r := range t.rules {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Rules returns a copy of the rule list in priority order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Domains returns the sorted union of every literal domain.
func (t *Table) Domains() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range t.rules {
		for _, d := range r.Domains {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	sort.Strings(out)
	return out
}
