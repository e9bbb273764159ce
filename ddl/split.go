package ddl

import "strings"

// Statement is one statement cut from a DDL script.
type Statement struct {
	Ordinal int    // 1-based among non-empty statements
	Line    int    // line the statement starts on
	Text    string // without the terminating semicolon
}

// SplitStatements cuts a script on semicolons that sit outside parentheses,
// string literals, quoted identifiers and comments. Statements holding only
// whitespace and comments are dropped.
func SplitStatements(script string) []Statement {
	var (
		statements []Statement
		current    strings.Builder
		depth      int
		line       = 1
		startLine  = 0
		meaningful bool
	)

	flush := func() {
		text := strings.TrimSpace(current.String())
		if meaningful && text != "" {
			statements = append(statements, Statement{
				Ordinal: len(statements) + 1,
				Line:    startLine,
				Text:    text,
			})
		}
		current.Reset()
		meaningful = false
		startLine = 0
		depth = 0
	}
	mark := func() {
		if !meaningful {
			meaningful = true
			startLine = line
		}
	}

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			end := i
			for end < len(runes) && runes[end] != '\n' {
				end++
			}
			current.WriteString(string(runes[i:end]))
			i = end - 1
			continue
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := i + 2
			for end < len(runes) && !(runes[end] == '*' && end+1 < len(runes) && runes[end+1] == '/') {
				end++
			}
			end = min(end+2, len(runes))
			text := string(runes[i:end])
			line += strings.Count(text, "\n")
			current.WriteString(text)
			i = end - 1
			continue
		case r == '\'' || r == '"' || r == '`' || r == '[':
			mark()
			closing := r
			if r == '[' {
				closing = ']'
			}
			end := i + 1
			for end < len(runes) {
				if runes[end] == closing {
					// doubled quote is an escaped quote
					if closing != ']' && end+1 < len(runes) && runes[end+1] == closing {
						end += 2
						continue
					}
					break
				}
				end++
			}
			end = min(end+1, len(runes))
			text := string(runes[i:end])
			line += strings.Count(text, "\n")
			current.WriteString(text)
			i = end - 1
			continue
		case r == '(':
			mark()
			depth++
		case r == ')':
			mark()
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			flush()
			continue
		case r == '\n':
			line++
		case r != ' ' && r != '\t' && r != '\r':
			mark()
		}
		current.WriteRune(r)
	}
	flush()
	return statements
}
