package processor

import (
	"html"
	"regexp"
	"strings"

	"holdingsflow/models"
)

// tag patterns are single-line and non-greedy. Filing bodies mix SGML
// wrappers with XML tables, so no real XML parser is used.
func tagPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(`<` + tag + `>(.*?)</` + tag + `>`)
}

var (
	issuerPattern    = tagPattern("nameOfIssuer")
	titlePattern     = tagPattern("titleOfClass")
	cusipPattern     = tagPattern("cusip")
	valuePattern     = tagPattern("value")
	shareAmtPattern  = tagPattern("sshPrnamt")
	shareTypePattern = tagPattern("sshPrnamtType")
)

// ScanFields collects every occurrence of the six holding tags in text.
func ScanFields(text string) models.RawHoldingFields {
	return models.RawHoldingFields{
		IssuerNames:      findAll(issuerPattern, text),
		TitlesOfClass:    findAll(titlePattern, text),
		CUSIPs:           findAll(cusipPattern, text),
		Values:           findAll(valuePattern, text),
		ShareAmounts:     findAll(shareAmtPattern, text),
		ShareAmountTypes: findAll(shareTypePattern, text),
	}
}

func findAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = html.UnescapeString(strings.TrimSpace(m[1]))
	}
	return out
}
