// Package rules cleans up raw transcripts with user-defined substitutions
// before a take is saved as a journal entry. Rules live in a plain text
// file so users can fix the words the transcription service keeps getting
// wrong in their entries, for example names, filler words, or jargon.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// defaultMaxPasses caps rule re-application when rules feed each other.
const defaultMaxPasses = 30

type rule interface {
	apply(text string) (out string, changed bool)
}

// Engine rewrites transcript text with the substitutions loaded from a
// rules file. Two line formats are supported: a plain alias
// ("gonna => going to") and a sed-style substitution ("s/\bumm*\b//g").
// Blank lines and lines starting with # are ignored.
type Engine struct {
	rules     []rule
	maxPasses int
}

// NewEngine compiles the rules file at path. An empty path or a missing
// file yields a pass-through engine; a file that exists but fails to
// parse is an error. maxPasses <= 0 selects a sensible default.
func NewEngine(path string, maxPasses int) (*Engine, error) {
	if maxPasses <= 0 {
		maxPasses = defaultMaxPasses
	}
	if strings.TrimSpace(path) == "" {
		return &Engine{maxPasses: maxPasses}, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Engine{maxPasses: maxPasses}, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}

	rules, err := compileRules(string(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	return &Engine{rules: rules, maxPasses: maxPasses}, nil
}

// Apply runs every rule over the transcript, repeating passes until the
// text stops changing or the pass cap is hit. Repetition lets one rule's
// output feed another without the file author caring about order.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for pass := 0; pass < e.maxPasses; pass++ {
		changed := false
		for _, r := range e.rules {
			next, ruleChanged := r.apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}

func compileRules(contents string) ([]rule, error) {
	var rules []rule
	for i, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			r   rule
			err error
		)
		switch {
		// A sed-style line starts with "s" plus a punctuation delimiter,
		// which also keeps aliases like "solid => SOLID" out of this arm.
		case isSubstitutionLine(line):
			r, err = compileSubstitution(line)
		case strings.Contains(line, "=>"):
			r, err = compileAlias(line)
		default:
			err = errors.New("unsupported rule format")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// aliasRule is the "misheard => corrected" form. Matching is literal and
// case-insensitive so a rule written once covers however the phrase was
// capitalized in speech.
type aliasRule struct {
	re          *regexp.Regexp
	replacement string
}

func compileAlias(line string) (rule, error) {
	parts := strings.SplitN(line, "=>", 2)
	from := strings.TrimSpace(parts[0])
	to := strings.TrimSpace(parts[1])
	if from == "" {
		return nil, errors.New("alias rule has no text to match")
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid alias rule: %w", err)
	}
	return aliasRule{re: re, replacement: to}, nil
}

func (r aliasRule) apply(text string) (string, bool) {
	out := r.re.ReplaceAllString(text, r.replacement)
	return out, out != text
}

// substitutionRule is the sed form s/pattern/replacement/flags with any
// punctuation character as the delimiter. Supported flags are i, g, m
// and s; matching is case-insensitive unless the pattern itself opts
// out, and without g only the first match is replaced.
type substitutionRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func compileSubstitution(line string) (rule, error) {
	delim := line[1]

	pattern, pos, err := readUntilDelim(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid substitution pattern: %w", err)
	}
	replacement, pos, err := readUntilDelim(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid substitution replacement: %w", err)
	}

	ignoreCase, global := true, false
	multiLine, dotAll := false, false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'i':
			ignoreCase = true
		case 'g':
			global = true
		case 'm':
			multiLine = true
		case 's':
			dotAll = true
		case ' ':
		default:
			return nil, fmt.Errorf("unsupported substitution flag %q", flag)
		}
	}

	mode := ""
	if ignoreCase {
		mode += "i"
	}
	if multiLine {
		mode += "m"
	}
	if dotAll {
		mode += "s"
	}
	if mode != "" {
		pattern = "(?" + mode + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid substitution pattern: %w", err)
	}
	return substitutionRule{re: re, replacement: replacement, global: global}, nil
}

func (r substitutionRule) apply(text string) (string, bool) {
	if r.global {
		out := r.re.ReplaceAllString(text, r.replacement)
		return out, out != text
	}

	loc := r.re.FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	replaced := r.re.ReplaceAllString(text[loc[0]:loc[1]], r.replacement)
	out := text[:loc[0]] + replaced + text[loc[1]:]
	return out, out != text
}

// readUntilDelim scans line from start to the next unescaped delimiter,
// keeping backslash escapes intact for the regexp compiler.
func readUntilDelim(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			b.WriteByte(c)
			escaped = true
		case c == delim:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isSubstitutionLine(line string) bool {
	return len(line) > 1 && line[0] == 's' && isPunctDelim(line[1])
}

func isPunctDelim(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == ' ', c == '\t':
		return false
	}
	return true
}
