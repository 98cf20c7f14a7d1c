package directory

import (
	"regexp"
	"strings"
)

// boilerplateKeywords mark navigation and status lines copied from the
// listing UI.
var boilerplateKeywords = []string{"ウェブサイト", "ルート", "営業中", "閉店", "口コミ"}

// reviewKeywords mark lines quoted from customer reviews.
var reviewKeywords = []string{
	"楽しい", "親切", "人柄", "感じ", "スタッフ", "雰囲気", "交流", "お世話", "ありがとう", "です", "ました", "🙇",
}

// addressMarkers are tokens that make a line a plausible street address.
// After normalization the hyphen also catches bare block numbers ("1-2-3").
var addressMarkers = []string{"丁目", "町", "番", "区", "-"}

// categorySeparators are the two lookalike middle dots used between
// rating and category ("4.2 · 食品").
const categorySeparators = "·⋅"

// phoneRe accepts any Unicode decimal digit so full-width numbers match too.
var phoneRe = regexp.MustCompile(`\p{Nd}{2,4}-\p{Nd}{2,4}-\p{Nd}{3,4}`)

// blockNumberRe matches street block numbers such as "1-2-3" or "12-4".
var blockNumberRe = regexp.MustCompile(`\p{Nd}+-\p{Nd}+`)

// IsPhoneLine reports whether line contains a phone number.
func IsPhoneLine(line string) bool {
	return phoneRe.MatchString(line)
}

// FindPhone returns the first phone number in line, or "".
func FindPhone(line string) string {
	return phoneRe.FindString(line)
}

// IsKeywordLine reports whether line carries a boilerplate or review token.
func (p Policy) IsKeywordLine(line string) bool {
	return containsAny(line, boilerplateKeywords) ||
		containsAny(line, reviewKeywords) ||
		containsAny(line, p.ExtraKeywords)
}

// looksLikeAttribute reports whether line has the shape of a category or
// address line. Bare 町/区 are not enough: they are common in shop names.
func looksLikeAttribute(line string) bool {
	return strings.ContainsAny(line, categorySeparators) ||
		strings.Contains(line, "丁目") ||
		blockNumberRe.MatchString(line)
}

func containsAny(line string, tokens []string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(line, tok) {
			return true
		}
	}
	return false
}
