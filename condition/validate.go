package condition

import (
	"sort"
	"strconv"
	"strings"
)

// ValidationResult is the outcome of validating a condition string without
// evaluating it against any record (spec.md §4.3.3).
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Message     string   `json:"message,omitempty"`
	Offset      int      `json:"offset,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// knownOperators is the vocabulary offered as suggestions when a token
// looks like a misspelled or miscased operator keyword.
var knownOperators = []string{
	"AND", "OR", "NOT", "IN", "NOT IN", "CONTAINS", "NOT CONTAINS",
	"STARTSWITH", "NOT STARTSWITH", "ENDSWITH", "NOT ENDSWITH",
	"MATCH", "LIKE", "IS NULL", "IS NOT NULL",
}

// Validate reports whether expr parses, and on failure locates the
// offending token and offers nearby-keyword suggestions.
func Validate(expr string) ValidationResult {
	toks, err := tokenize(expr)
	if err != nil {
		return ValidationResult{Valid: false, Message: err.Error()}
	}
	if len(toks) == 0 {
		return ValidationResult{Valid: false, Message: "condition is empty"}
	}

	for _, t := range toks {
		if t.name == "Unknown" {
			return ValidationResult{
				Valid:       false,
				Message:     "unrecognized character " + strconv.Quote(t.Value),
				Offset:      t.Pos.Offset,
				Suggestions: suggestNear(t.Value),
			}
		}
	}

	for i, t := range toks {
		if t.name != "Path" {
			continue
		}
		if kw := strings.ToUpper(t.Value); kw == "WHERE" || kw == "SELECT" || kw == "CASE" {
			return ValidationResult{Valid: false, Message: "unsupported SQL keyword " + kw + ": a condition is a boolean expression, not a SQL clause", Offset: t.Pos.Offset}
		}
		if i+1 < len(toks) && toks[i+1].name == "LParen" {
			return ValidationResult{Valid: false, Message: "unsupported function call " + strconv.Quote(t.Value), Offset: t.Pos.Offset}
		}
	}

	p := &parser{tokens: toks, src: expr}
	_, perr := p.parseOr(0)
	if perr != nil {
		offset := 0
		if !p.atEnd() {
			offset = p.peek().Pos.Offset
		} else if len(toks) > 0 {
			last := toks[len(toks)-1]
			offset = last.Pos.Offset + len(last.Value)
		}
		return ValidationResult{
			Valid:       false,
			Message:     perr.Error(),
			Offset:      offset,
			Suggestions: suggestNear(currentWordAt(expr, offset)),
		}
	}
	if !p.atEnd() {
		t := p.peek()
		return ValidationResult{
			Valid:       false,
			Message:     "unexpected token " + strconv.Quote(t.Value),
			Offset:      t.Pos.Offset,
			Suggestions: suggestNear(t.Value),
		}
	}
	return ValidationResult{Valid: true}
}

// currentWordAt extracts the identifier-ish token text at/around offset,
// used to seed operator-keyword suggestions when parsing fails at a
// token. An offset at or past the end of expr yields "", so a parse that
// fails for lack of further tokens gets no suggestions.
func currentWordAt(expr string, offset int) string {
	if offset < 0 || offset >= len(expr) {
		return ""
	}
	start, end := offset, offset
	for start > 0 && isWordByte(expr[start-1]) {
		start--
	}
	for end < len(expr) && isWordByte(expr[end]) {
		end++
	}
	return expr[start:end]
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// suggestNear returns up to 3 known operator keywords within edit
// distance 2 of word, closest first.
func suggestNear(word string) []string {
	if word == "" {
		return nil
	}
	upper := strings.ToUpper(word)
	type scored struct {
		op   string
		dist int
	}
	var candidates []scored
	for _, o := range knownOperators {
		d := levenshtein(upper, o)
		if d <= 2 {
			candidates = append(candidates, scored{o, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	var out []string
	for i := 0; i < len(candidates) && i < 3; i++ {
		out = append(out, candidates[i].op)
	}
	return out
}

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}
