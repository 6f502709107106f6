package scope

import (
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	pageRef  = regexp.MustCompile(`(?i)\bpages?\b((?:[\s,&-]|and|\d)+)`)
	number   = regexp.MustCompile(`\d+`)
	wordOnly = regexp.MustCompile(`[a-z0-9]+`)
)

// extractPages pulls page numbers out of phrasings like "page 12",
// "pages 3 and 5" or "pages 2, 4-5", deduplicated and sorted
// ascending. Returns nil when the query does not reference pages at
// all.
func extractPages(query string) []int {
	var pages []int
	seen := make(map[int]bool)
	for _, m := range pageRef.FindAllStringSubmatch(query, -1) {
		for _, n := range number.FindAllString(m[1], -1) {
			p, err := strconv.Atoi(n)
			if err != nil || p <= 0 || seen[p] {
				continue
			}
			seen[p] = true
			pages = append(pages, p)
		}
	}
	sort.Ints(pages)
	return pages
}

var compareWords = []string{"compare", "comparison", "difference", "differences", "versus", " vs ", " vs."}

func hasCompareKeyword(query string) bool {
	q := " " + strings.ToLower(query) + " "
	for _, w := range compareWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// similarity is the normalized Levenshtein ratio in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// strongKeywords returns the query tokens worth matching against
// filenames: lowercased alphanumeric runs longer than minLen-1 that are
// not generic question words.
func strongKeywords(query string, minLen int, stopWords map[string]bool) []string {
	var out []string
	for _, tok := range wordOnly.FindAllString(strings.ToLower(query), -1) {
		if len(tok) < minLen || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// filenameTokens normalizes a filename into comparable tokens: the
// extension is dropped and the stem is split on non-alphanumerics.
func filenameTokens(filename string) []string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return wordOnly.FindAllString(strings.ToLower(stem), -1)
}

// keywordFileMatch finds filenames sharing a strong keyword with the
// query. It rescues references the classifier missed, like "gatsby"
// naming "The Great Gatsby.pdf".
func keywordFileMatch(query string, filenames []string, minLen int, stopWords map[string]bool) []string {
	keywords := strongKeywords(query, minLen, stopWords)
	if len(keywords) == 0 {
		return nil
	}

	var matched []string
	for _, name := range filenames {
		tokens := filenameTokens(name)
	search:
		for _, kw := range keywords {
			for _, tok := range tokens {
				if tok == kw {
					matched = append(matched, name)
					break search
				}
			}
		}
	}
	return matched
}
