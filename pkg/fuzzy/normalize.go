// Package fuzzy folds track titles and artist names for forgiving text search.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MatchThreshold is the minimum title similarity for a non-substring match.
const MatchThreshold = 0.8

var (
	bracketDecoration = regexp.MustCompile(`\s*[\(\[][^\)\]]*\b(?:feat|ft|featuring|with|remix|remaster|remastered|deluxe|extended|radio edit|live|version|mix|edit)\b[^\)\]]*[\)\]]`)
	dashDecoration    = regexp.MustCompile(`\s+-\s+[^-]*\b(?:remaster|remastered|remix|radio edit|live|version|edit|mix|deluxe|extended|mono|stereo)\b.*$`)
	featSuffix        = regexp.MustCompile(`\s+(?:feat|ft|featuring)\b.*$`)
	punctRegex        = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Fold lowercases text, strips accents and punctuation, and collapses whitespace.
func (n *Normalizer) Fold(text string) string {
	text = stripMarks(text)

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}

func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = n.Fold(artist)

	artist = strings.ReplaceAll(artist, " and ", " & ")
	artist = strings.ReplaceAll(artist, " vs ", " vs. ")
	artist = strings.ReplaceAll(artist, " feat ", " feat. ")
	artist = strings.ReplaceAll(artist, " ft ", " ft. ")

	return artist
}

// NormalizeTitle folds title after dropping featured-artist and version decorations.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = strings.ToLower(stripMarks(title))

	title = bracketDecoration.ReplaceAllString(title, " ")
	title = dashDecoration.ReplaceAllString(title, "")
	title = featSuffix.ReplaceAllString(title, "")

	return n.Fold(title)
}

// Matches reports whether query finds a blacklist entry with the given title
// and artist. An empty query matches everything.
func (n *Normalizer) Matches(query, title, artist string) bool {
	folded := n.Fold(query)
	if folded == "" {
		return true
	}

	if strings.Contains(n.Fold(title), folded) {
		return true
	}
	if artist != "" && strings.Contains(n.NormalizeArtist(artist), n.NormalizeArtist(query)) {
		return true
	}

	q, t := n.NormalizeTitle(query), n.NormalizeTitle(title)
	// The LCS is bounded by the shorter string, so a wide length gap can
	// never reach the threshold.
	if float64(min(len(q), len(t))) < MatchThreshold*float64(max(len(q), len(t))) {
		return false
	}
	return n.CalculateSimilarity(q, t) >= MatchThreshold
}

func (n *Normalizer) CalculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	return float64(longestCommonSubsequence(s1, s2)) / float64(max(len(s1), len(s2)))
}

func longestCommonSubsequence(s1, s2 string) int {
	m, n := len(s1), len(s2)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if s1[i-1] == s2[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}

	return dp[m][n]
}

func stripMarks(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	result.Grow(len(text))
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
