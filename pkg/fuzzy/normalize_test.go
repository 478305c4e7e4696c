package fuzzy

import (
	"strings"
	"testing"
)

// runStringTransformationTest is a helper to run tests for string transformation functions.
func runStringTransformationTest(t *testing.T, testName string,
	transformFunc func(string) string, testCases []transformCase) {
	t.Helper()
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			result := transformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", testName, result, tt.expected)
			}
		})
	}
}

type transformCase = struct {
	name     string
	input    string
	expected string
}

func TestNormalizer_NormalizeArtist(t *testing.T) {
	normalizer := NewNormalizer()

	runStringTransformationTest(t, "NormalizeArtist", normalizer.NormalizeArtist, []transformCase{
		{"Plain name", "Daft Punk", "daft punk"},
		{"Featuring with dot", "Calvin Harris feat. Rihanna", "calvin harris feat. rihanna"},
		{"Bare ft", "Drake ft Rihanna", "drake ft. rihanna"},
		{"And becomes ampersand", "Simon and Garfunkel", "simon & garfunkel"},
		{"Versus", "Armin vs Tiesto", "armin vs. tiesto"},
		{"Punctuation inside name", "AC/DC", "ac dc"},
		{"Diacritics", "Sigur Rós", "sigur ros"},
	})
}

func TestNormalizer_NormalizeTitle(t *testing.T) {
	normalizer := NewNormalizer()

	runStringTransformationTest(t, "NormalizeTitle", normalizer.NormalizeTitle, []transformCase{
		{"Plain title", "Around the World", "around the world"},
		{"Bracketed featuring", "Umbrella (feat. JAY-Z)", "umbrella"},
		{"Bracketed remix", "Levels (Skrillex Remix)", "levels"},
		{"Square bracket remaster", "Paint It Black [Remastered 2009]", "paint it black"},
		{"Dash radio edit", "Strobe - Radio Edit", "strobe"},
		{"Dash live version", "Hey Jude - Live Version", "hey jude"},
		{"Bare ft suffix", "Work ft. Drake", "work"},
		{"Decoration word as the title", "Remix Culture", "remix culture"},
		{"Plain parentheses are kept", "Song (Part Two)", "song part two"},
		{"Apostrophes and bangs", "Don't Stop Me Now!", "don t stop me now"},
		{"Accented title", "Café del Mar (Energy 52 Remix)", "cafe del mar"},
		{"Stacked decorations", "Hey Jude (Remastered 2015) [feat. Orchestra] - Live Version", "hey jude"},
	})
}

func TestNormalizer_Fold(t *testing.T) {
	normalizer := NewNormalizer()

	runStringTransformationTest(t, "Fold", normalizer.Fold, []transformCase{
		{"Uppercase", "THUNDERSTRUCK", "thunderstruck"},
		{"Accents", "Beyoncé Knowles", "beyonce knowles"},
		{"Punctuation", "Hello, Goodbye!", "hello goodbye"},
		{"Whitespace runs", "  smells   like  teen spirit ", "smells like teen spirit"},
		{"Decorations are kept", "Levels (Remix)", "levels remix"},
		{"Empty", "", ""},
	})
}

type similarityTestCase struct {
	name     string
	s1       string
	s2       string
	expected float64
}

func createSimilarityTestCases() []similarityTestCase {
	return []similarityTestCase{
		{"Identical", "levels", "levels", 1.0},
		{"Disjoint", "abc", "xyz", 0.0},
		{"One letter dropped", "rhapsody", "rapsody", 0.875},
		{"Both empty", "", "", 1.0},
		{"One empty", "strobe", "", 0.0},
	}
}

func TestNormalizer_CalculateSimilarity(t *testing.T) {
	normalizer := NewNormalizer()

	for _, tt := range createSimilarityTestCases() {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizer.CalculateSimilarity(tt.s1, tt.s2)
			if abs64(result-tt.expected) > 0.01 {
				t.Errorf("CalculateSimilarity() = %f, want %f", result, tt.expected)
			}
		})
	}
}

func TestNormalizer_Matches(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name   string
		query  string
		title  string
		artist string
		want   bool
	}{
		{"Empty query matches all", "", "Anything", "", true},
		{"Punctuation-only query matches all", "  !! ", "Anything", "", true},
		{"Title substring", "rhapsody", "Bohemian Rhapsody", "Queen", true},
		{"Accent insensitive", "beyonce", "Halo", "Beyoncé", true},
		{"Artist substring", "garfunkel", "The Boxer", "Simon and Garfunkel", true},
		{"Decorated title similarity", "song title", "Song Title (feat. Artist)", "", true},
		{"Misspelled title", "bohemian rapsody", "Bohemian Rhapsody", "", true},
		{"Unrelated", "thunderstruck", "Bohemian Rhapsody", "Queen", false},
		{"Artist ignored when empty", "queen", "Bohemian Rhapsody", "", false},
		{"Short title against a long query", "bohemian rhapsody live at wembley", "Bohemian", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizer.Matches(tt.query, tt.title, tt.artist); got != tt.want {
				t.Errorf("Matches(%q, %q, %q) = %v, want %v", tt.query, tt.title, tt.artist, got, tt.want)
			}
		})
	}
}

func TestNormalizer_MatchesSkipsLengthGap(t *testing.T) {
	normalizer := NewNormalizer()
	long := strings.Repeat("bohemian rhapsody ", 5000)

	if normalizer.Matches(long, "Bohemian Rhapsody", "Queen") {
		t.Error("Expected a query far longer than the title not to match")
	}
	if !normalizer.Matches("bohemian rapsody", "Bohemian Rhapsody", "") {
		t.Error("Expected titles of similar length to still be compared")
	}
}

func BenchmarkNormalizer_NormalizeTitle(b *testing.B) {
	normalizer := NewNormalizer()

	for b.Loop() {
		normalizer.NormalizeTitle("Umbrella (feat. JAY-Z) [Remix] - Radio Edit")
	}
}

func BenchmarkNormalizer_Matches(b *testing.B) {
	normalizer := NewNormalizer()

	for b.Loop() {
		normalizer.Matches("bohemian rapsody", "Bohemian Rhapsody (Remastered 2011)", "Queen")
	}
}

func abs64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
