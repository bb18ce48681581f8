package artscout

import (
	"regexp"
	"strings"
)

// PeopleKeywords indicate portrait/people subject matter. The same set is
// used both to recognize people-queries and to screen item metadata.
// Keywords are matched as whole words.
var PeopleKeywords = []string{
	"portrait", "portraits", "self-portrait",
	"people", "person", "man", "woman", "men", "women",
	"child", "children", "boy", "girl", "baby", "family", "couple",
	"wedding", "figure", "nude", "bust", "face", "head",
	"soldier", "sitter", "dancer", "mother", "father",
}

var peopleRe = regexp.MustCompile(`\b(` + strings.Join(PeopleKeywords, "|") + `)\b`)

// namePatterns match titles that are structurally a person's name, which
// museum catalogs use for portraits even when no people keyword appears.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z][a-z]+, [A-Z][a-z]+`), // "Lastname, Firstname"
	regexp.MustCompile(`\b(Mr|Mrs|Miss|Ms|Dr|Sir|Lady|Lord|Madame|Monsieur|Comtesse|Countess)\.? [A-Z]`),
}

// IsPeopleQuery reports whether the query itself asks for people or
// portrait imagery. Content screening is skipped entirely for such queries.
func IsPeopleQuery(query string) bool {
	return peopleRe.MatchString(strings.ToLower(query))
}

// IncludeArtwork decides whether item belongs in the results for query.
// People-queries bypass the filter. Otherwise the item's title, creator,
// medium and subject tags are combined and the item is excluded when that
// text reads like a portrait or the title is a person's name.
func IncludeArtwork(item Artwork, query string, subjects []string) bool {
	if IsPeopleQuery(query) {
		return true
	}

	combined := strings.ToLower(
		item.Title + " " + item.Artist + " " + item.Medium + " " + strings.Join(subjects, " "))
	if peopleRe.MatchString(combined) {
		return false
	}

	for _, re := range namePatterns {
		if re.MatchString(item.Title) {
			return false
		}
	}
	return true
}
