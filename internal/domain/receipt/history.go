// Package receipt extracts payment entries from DAS/DARF collection
// receipts and turns them into bookkeeping export lines.
package receipt

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// commonTerms match first. MULTA E JUROS must sit before MULTA so the
// combined fine entry is not swallowed by the shorter term.
var commonTerms = []string{
	"SIMPLES NACIONAL",
	"MULTA E JUROS",
	"MULTA",
}

// tributes are the single-word federal taxes recognized after the
// common terms.
var tributes = []string{
	"PIS",
	"COFINS",
	"IRPJ",
	"CSLL",
	"ISS",
	"IRRF",
}

// aliases map receipt wording to the canonical description. Most of
// the social-security variants collapse into INSS.
var aliases = []struct {
	term      string
	canonical string
}{
	{"SIMP NAC", "SIMPLES NACIONAL"},
	{"CONTR PREV DESCONTA SEGURADO", "INSS"},
	{"CP", "INSS"},
	{"CONTRIB PREVID PATRONAL", "INSS"},
	{"CONTRIBUIÇÃO PREVID SEGURADOS", "INSS"},
	{"CONTR PREVIDENCIÁRIA EMPREGADOR/EMPRESA", "INSS"},
	{"CONTRIB PREV RISCO AMBIENTAL/APOSENT ESPECIAL", "INSS"},
	{"CONTRIBUIÇÃO TERCEIROS", "INSS"},
	{"CIDE", "INSS"},
	{"CONTRIBUIÇÃO EMPRESA/EMPREGADOR", "INSS"},
	{"CONTRIB TERC", "INSS"},
	{"CONTRIB RISCO AMB/APOSENT ESPECIAL", "INSS"},
	{"RET DE CONTRIBUICOES PAGT PJ A PJ DE DIR PRIV", "INSS"},
}

// UnknownDescription is the catch-all when no term matches.
const UnknownDescription = "PG. DESCONHECIDO XX"

var (
	priorityTerms []string
	termMatcher   *ahocorasick.Matcher
)

func init() {
	priorityTerms = append(priorityTerms, commonTerms...)
	priorityTerms = append(priorityTerms, tributes...)
	for _, a := range aliases {
		priorityTerms = append(priorityTerms, a.term)
	}
	termMatcher = ahocorasick.NewStringMatcher(priorityTerms)
}

// ExtractDescription derives the canonical "PG. <termo> XX" description
// from a receipt payment line. The first term in priority order found
// anywhere in the line wins; list position, not match position, decides.
func ExtractDescription(line string) string {
	upper := strings.ToUpper(line)

	hits := termMatcher.Match([]byte(upper))
	if len(hits) == 0 {
		return UnknownDescription
	}

	best := hits[0]
	for _, h := range hits[1:] {
		if h < best {
			best = h
		}
	}
	term := priorityTerms[best]

	name := term
	for _, a := range aliases {
		if a.term == term {
			name = a.canonical
			break
		}
	}

	if strings.Contains(upper, "PARCELAMENTO") {
		name += " PARCELAMENTO"
	}

	return "PG. " + name + " XX"
}
