// Package sqlguard decides whether a model-authored statement may reach the
// database. The model is told to stay read-only; this package enforces it.
package sqlguard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyStatement is returned for blank input
	ErrEmptyStatement = errors.New("empty statement")

	// ErrMultipleStatements is returned when more than one statement is submitted
	ErrMultipleStatements = errors.New("multiple statements are not allowed")

	// ErrNotReadOnly is returned when the statement can modify data or schema
	ErrNotReadOnly = errors.New("statement is not read-only")

	// ErrMalformed is returned when a literal, identifier or comment is not
	// closed, or a literal's meaning depends on server settings
	ErrMalformed = errors.New("statement could not be tokenized")
)

// Violation describes why a statement was rejected
type Violation struct {
	Reason  error
	Keyword string
}

func (v *Violation) Error() string {
	if v.Keyword != "" {
		return fmt.Sprintf("%s: %s", v.Reason.Error(), v.Keyword)
	}
	return v.Reason.Error()
}

func (v *Violation) Unwrap() error {
	return v.Reason
}

var readOnlyLeaders = map[string]struct{}{
	"SELECT":  {},
	"WITH":    {},
	"SHOW":    {},
	"VALUES":  {},
	"TABLE":   {},
	"EXPLAIN": {},
}

// Verbs that start a statement. Postgres only accepts them at the head of a
// statement or of a CTE body, so that is the only place they are matched and
// columns such as "comment" or "load" stay usable.
var statementVerbs = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "MERGE": {}, "UPSERT": {},
	"DROP": {}, "ALTER": {}, "CREATE": {}, "TRUNCATE": {}, "RENAME": {},
	"GRANT": {}, "REVOKE": {}, "COPY": {}, "CALL": {}, "EXECUTE": {}, "EXEC": {}, "DO": {},
	"LOCK": {}, "VACUUM": {}, "ANALYZE": {}, "REINDEX": {}, "CLUSTER": {}, "COMMENT": {},
	"REFRESH": {}, "SET": {}, "RESET": {}, "LISTEN": {}, "NOTIFY": {}, "UNLISTEN": {},
	"PREPARE": {}, "DEALLOCATE": {}, "DISCARD": {}, "IMPORT": {}, "LOAD": {},
	"SECURITY": {}, "REASSIGN": {}, "CHECKPOINT": {}, "DECLARE": {}, "FETCH": {}, "MOVE": {}, "CLOSE": {},
	"BEGIN": {}, "START": {}, "COMMIT": {}, "END": {}, "ROLLBACK": {}, "ABORT": {},
	"SAVEPOINT": {}, "RELEASE": {},
}

// Keywords rejected anywhere outside literals: data-modifying verbs (writable
// CTEs, FOR UPDATE) and SELECT ... INTO.
var writeKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "MERGE": {}, "UPSERT": {}, "INTO": {},
}

// words after which "(" opens a statement body
var bodyOpeners = map[string]struct{}{
	"AS": {}, "MATERIALIZED": {},
}

// functions that write or leave the session even inside a SELECT
var deniedFunctions = regexp.MustCompile(`^(pg_sleep\w*|pg_terminate_backend|pg_cancel_backend|pg_reload_conf|pg_rotate_logfile|lo_\w+|dblink\w*|set_config|nextval|setval|pg_advisory\w*lock\w*|pg_notify|txid_current|pg_current_xact_id)$`)

// Check returns nil when sql is a single read-only statement
func Check(sql string) error {
	stripped, err := scrub(sql)
	if err != nil {
		return &Violation{Reason: err}
	}
	if stripped == "" {
		return &Violation{Reason: ErrEmptyStatement}
	}
	if strings.Contains(stripped, ";") {
		return &Violation{Reason: ErrMultipleStatements}
	}

	toks := tokenize(stripped)

	start := 0
	for start < len(toks) && toks[start].text == "(" {
		start++
	}
	if start == len(toks) || toks[start].kind != tokenWord {
		return &Violation{Reason: ErrNotReadOnly}
	}
	leader := strings.ToUpper(toks[start].text)
	if _, ok := readOnlyLeaders[leader]; !ok {
		return &Violation{Reason: ErrNotReadOnly, Keyword: leader}
	}

	if leader == "EXPLAIN" {
		for _, tok := range toks[start+1:] {
			if tok.kind == tokenWord && strings.EqualFold(tok.text, "ANALYZE") {
				return &Violation{Reason: ErrNotReadOnly, Keyword: "ANALYZE"}
			}
		}
	}

	for i := start + 1; i < len(toks); i++ {
		tok := toks[i]
		if tok.kind != tokenWord {
			continue
		}
		word := strings.ToUpper(tok.text)
		prev, next := tokenAt(toks, i-1), tokenAt(toks, i+1)

		if next.text == "(" && deniedFunctions.MatchString(strings.ToLower(tok.text)) {
			return &Violation{Reason: ErrNotReadOnly, Keyword: strings.ToLower(tok.text)}
		}

		// qualified names and aliases are identifiers
		if prev.text == "." || strings.EqualFold(prev.text, "AS") {
			continue
		}

		if _, ok := writeKeywords[word]; ok {
			return &Violation{Reason: ErrNotReadOnly, Keyword: word}
		}
		if word == "FOR" && next.kind == tokenWord {
			switch lock := strings.ToUpper(next.text); lock {
			case "SHARE", "KEY", "NO":
				return &Violation{Reason: ErrNotReadOnly, Keyword: "FOR " + lock}
			}
		}
		if prev.text == "(" {
			if _, ok := bodyOpeners[strings.ToUpper(tokenAt(toks, i-2).text)]; ok {
				if _, ok := statementVerbs[word]; ok {
					return &Violation{Reason: ErrNotReadOnly, Keyword: word}
				}
			}
		}
	}

	return nil
}

// IsReadOnly is Check as a predicate
func IsReadOnly(sql string) bool {
	return Check(sql) == nil
}

// Normalize removes comments and literal contents and trims trailing
// semicolons. Literals are replaced with empty placeholders so keywords inside
// them are not matched. Input that cannot be tokenized is returned as far as
// it was scrubbed.
func Normalize(sql string) string {
	s, _ := scrub(sql)
	return s
}

func scrub(sql string) (string, error) {
	var out strings.Builder
	out.Grow(len(sql))

	n := len(sql)
	for i := 0; i < n; {
		c := sql[i]
		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')

		case c == '/' && i+1 < n && sql[i+1] == '*':
			// block comments nest
			depth := 0
			for i < n {
				if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
					depth++
					i += 2
					continue
				}
				if i+1 < n && sql[i] == '*' && sql[i+1] == '/' {
					depth--
					i += 2
					if depth == 0 {
						break
					}
					continue
				}
				i++
			}
			if depth != 0 {
				return strings.TrimSpace(out.String()), ErrMalformed
			}
			out.WriteByte(' ')

		case c == '\'':
			escaped := isEscapePrefix(sql, i)
			if escaped {
				s := out.String()
				out.Reset()
				out.WriteString(s[:len(s)-1])
			}
			end, err := skipString(sql, i, escaped)
			if err != nil {
				return strings.TrimSpace(out.String()), err
			}
			out.WriteString("''")
			i = end

		case c == '"':
			end := skipQuoted(sql, i, '"')
			if end < 0 {
				return strings.TrimSpace(out.String()), ErrMalformed
			}
			out.WriteString(`""`)
			i = end

		case c == '$' && (i == 0 || !isIdentChar(sql[i-1])):
			tag, ok := dollarTag(sql, i)
			if !ok {
				out.WriteByte(c)
				i++
				continue
			}
			closing := strings.Index(sql[i+len(tag):], tag)
			if closing < 0 {
				return strings.TrimSpace(out.String()), ErrMalformed
			}
			out.WriteString("''")
			i += len(tag) + closing + len(tag)

		default:
			out.WriteByte(c)
			i++
		}
	}

	s := strings.TrimSpace(out.String())
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	return s, nil
}

// isEscapePrefix reports whether the quote at i opens an E'...' string
func isEscapePrefix(sql string, i int) bool {
	if i == 0 || (sql[i-1] != 'E' && sql[i-1] != 'e') {
		return false
	}
	return i == 1 || !isIdentChar(sql[i-2])
}

// skipString returns the index after the literal opening at i. In escape
// strings a backslash escapes the next byte. In standard strings a backslash
// is rejected: whether it escapes depends on standard_conforming_strings, and
// guessing wrong would hide the rest of the statement inside the literal.
func skipString(sql string, i int, escaped bool) (int, error) {
	n := len(sql)
	for j := i + 1; j < n; j++ {
		switch sql[j] {
		case '\\':
			if !escaped {
				return 0, ErrMalformed
			}
			j++
		case '\'':
			if j+1 < n && sql[j+1] == '\'' {
				j++
				continue
			}
			return j + 1, nil
		}
	}
	return 0, ErrMalformed
}

// skipQuoted returns the index after the quoted run opening at i, or -1
func skipQuoted(sql string, i int, quote byte) int {
	n := len(sql)
	for j := i + 1; j < n; j++ {
		if sql[j] != quote {
			continue
		}
		if j+1 < n && sql[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return -1
}

// dollarTag returns the $tag$ opening at i; $1 style parameters are not tags
func dollarTag(sql string, i int) (string, bool) {
	j := i + 1
	if j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
		return "", false
	}
	for j < len(sql) && sql[j] != '$' {
		if !isIdentChar(sql[j]) || sql[j] == '$' {
			return "", false
		}
		j++
	}
	if j >= len(sql) {
		return "", false
	}
	return sql[i : j+1], true
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenOther
)

type token struct {
	text string
	kind tokenKind
}

func tokenAt(toks []token, i int) token {
	if i < 0 || i >= len(toks) {
		return token{kind: tokenOther}
	}
	return toks[i]
}

// tokenize splits scrubbed SQL into words and single punctuation marks.
// Literals arrive as '' or "" and become non-word tokens.
func tokenize(s string) []token {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case c == '\'' || c == '"':
			toks = append(toks, token{text: s[i : i+2], kind: tokenOther})
			i += 2
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && (isIdentChar(s[j]) || s[j] == '.') {
				j++
			}
			toks = append(toks, token{text: s[i:j], kind: tokenOther})
			i = j
		case isIdentChar(c):
			j := i
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			toks = append(toks, token{text: s[i:j], kind: tokenWord})
			i = j
		default:
			toks = append(toks, token{text: s[i : i+1], kind: tokenOther})
			i++
		}
	}
	return toks
}
