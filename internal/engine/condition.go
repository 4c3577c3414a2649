package engine

import "strings"

const resultSuffix = ".result"

// Evaluate tests a branch condition against the results recorded so far.
//
// Recognized shapes, checked in this order:
//
//	<id> contains '<term>'   term may be single-, double- or un-quoted
//	<id> is not empty
//	<id> is empty
//
// Keywords match case-insensitively, the id keeps its case, and a trailing
// ".result" on the id is ignored. Anything else evaluates to true.
func Evaluate(condition string, results *ResultSet) bool {
	if strings.TrimSpace(condition) == "" {
		return true
	}
	if i := indexFold(condition, " contains "); i >= 0 {
		ref := reference(condition[:i])
		term := strings.Trim(strings.TrimSpace(condition[i+len(" contains "):]), `'"`)
		if ref == "" {
			return true
		}
		text, ok := results.Get(ref)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(text), strings.ToLower(term))
	}

	if i := indexFold(condition, "is not empty"); i >= 0 {
		ref := reference(condition[:i])
		if ref == "" {
			return true
		}
		text, ok := results.Get(ref)
		return ok && strings.TrimSpace(text) != ""
	}

	if i := indexFold(condition, "is empty"); i >= 0 {
		ref := reference(condition[:i])
		if ref == "" {
			return true
		}
		text, ok := results.Get(ref)
		return !ok || strings.TrimSpace(text) == ""
	}

	return true
}

// reference trims a condition's left-hand side down to a subtask id.
func reference(lhs string) string {
	ref := strings.TrimSpace(lhs)
	if len(ref) >= len(resultSuffix) && strings.EqualFold(ref[len(ref)-len(resultSuffix):], resultSuffix) {
		ref = ref[:len(ref)-len(resultSuffix)]
	}
	return strings.TrimSpace(ref)
}

// indexFold is strings.Index with ASCII case folding on keyword.
func indexFold(s, keyword string) int {
	for i := 0; i+len(keyword) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(keyword)], keyword) {
			return i
		}
	}
	return -1
}

// ConditionReference returns the subtask id a condition reads, or "" when the
// condition has no recognized shape.
func ConditionReference(condition string) string {
	for _, keyword := range []string{" contains ", "is not empty", "is empty"} {
		if i := indexFold(condition, keyword); i >= 0 {
			return reference(condition[:i])
		}
	}
	return ""
}
