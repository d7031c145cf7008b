package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Strategy names the repair rung that produced a parsed value.
type Strategy string

const (
	StrategyDirect        Strategy = "direct"
	StrategyExtract       Strategy = "extract"
	StrategyTrailingComma Strategy = "trailing_comma"
	StrategyInsertComma   Strategy = "insert_comma"
	StrategyBalance       Strategy = "balance"
)

const maxCandidateLogBytes = 200

var (
	trailingCommaRE = regexp.MustCompile(`,(\s*[}\]])`)

	// Each rule inserts a comma between two tokens that cannot legally be
	// adjacent outside a string. Matches inside string values are rewritten
	// too; that only happens once a cleaner parse has already failed.
	missingCommaRules = []struct {
		re      *regexp.Regexp
		replace string
	}{
		{regexp.MustCompile(`"(\s+)"`), `",$1"`},
		{regexp.MustCompile(`\}(\s*)\{`), `},$1{`},
		{regexp.MustCompile(`\](\s*)\[`), `],$1[`},
		{regexp.MustCompile(`"(\s*)\{`), `",$1{`},
		{regexp.MustCompile(`\}(\s*)"`), `},$1"`},
		{regexp.MustCompile(`(\d|true|false|null)(\s+)"`), `$1,$2"`},
	}
)

// RepairError reports that every repair strategy was exhausted.
type RepairError struct {
	Candidate string
	Err       error
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("json repair failed: %v (candidate: %q)", e.Err, e.Candidate)
}

func (e *RepairError) Unwrap() error {
	return e.Err
}

// Outcome is either a parsed value or the failure that ended the ladder.
type Outcome struct {
	Value    any
	Strategy Strategy
	Failure  *RepairError
}

func (o Outcome) Parsed() bool {
	return o.Failure == nil
}

// Err returns the failure as an error, or nil for a parsed outcome.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

func parsed(value any, strategy Strategy) Outcome {
	return Outcome{Value: value, Strategy: strategy}
}

func failed(candidate string, err error) Outcome {
	return Outcome{Failure: &RepairError{Candidate: truncate(candidate, maxCandidateLogBytes), Err: err}}
}

// Decode runs the full pipeline on raw model output: valid JSON is returned
// untouched, anything else goes through Extract and Repair. A value that
// parsed as soon as the wrapping was removed reports StrategyExtract.
func Decode(raw string) Outcome {
	if value, err := parse(raw); err == nil {
		return parsed(value, StrategyDirect)
	}
	extracted := Extract(raw)
	outcome := Repair(extracted)
	if outcome.Parsed() && outcome.Strategy == StrategyDirect && extracted != raw {
		outcome.Strategy = StrategyExtract
	}
	return outcome
}

// Repair applies progressively more invasive fixes to candidate until it
// parses. Fixes are cumulative and deterministic.
func Repair(candidate string) Outcome {
	current := strings.TrimSpace(candidate)
	value, err := parse(current)
	if err == nil {
		return parsed(value, StrategyDirect)
	}

	current = Extract(current)
	if value, err = parse(current); err == nil {
		return parsed(value, StrategyExtract)
	}

	current = RemoveTrailingCommas(current)
	if value, err = parse(current); err == nil {
		return parsed(value, StrategyTrailingComma)
	}

	current = InsertMissingCommas(current)
	if value, err = parse(current); err == nil {
		return parsed(value, StrategyInsertComma)
	}

	current = RemoveTrailingCommas(BalanceClosers(current))
	if value, err = parse(current); err == nil {
		return parsed(value, StrategyBalance)
	}
	return failed(current, err)
}

func RemoveTrailingCommas(text string) string {
	return trailingCommaRE.ReplaceAllString(text, "$1")
}

func InsertMissingCommas(text string) string {
	for _, rule := range missingCommaRules {
		text = rule.re.ReplaceAllString(text, rule.replace)
	}
	return text
}

// BalanceClosers appends the missing ']' and then '}' characters using flat
// counts of openers and closers.
func BalanceClosers(text string) string {
	openBraces := strings.Count(text, "{")
	closeBraces := strings.Count(text, "}")
	openBrackets := strings.Count(text, "[")
	closeBrackets := strings.Count(text, "]")

	var b strings.Builder
	b.WriteString(text)
	if openBrackets > closeBrackets {
		b.WriteString(strings.Repeat("]", openBrackets-closeBrackets))
	}
	if openBraces > closeBraces {
		b.WriteString(strings.Repeat("}", openBraces-closeBraces))
	}
	return b.String()
}

func parse(text string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// truncate cuts value to at most limit bytes without splitting a rune.
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "..."
}
