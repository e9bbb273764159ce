package sql

// Position is a location in the statement text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

type Token struct {
	Type   TokenType
	Value  string
	Pos    Position
	End    int  // byte offset just past the token
	Quoted bool // delimited identifier ("x", `x` or [x])
}

type TokenType int

const (
	Identifier TokenType = iota
	String
	Int
	Float
	Wildcard
	Comma
	Dot
	Semicolon
	ParenOpen
	ParenClose
	Minus
	Equals
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	And
	Or
	Not
	Is
	Null
	Like
	True
	False
	Select
	From
	Where
	Insert
	Into
	Values
	Update
	Set
	Delete
	Create
	Drop
	Alter
	Add
	TableKeyword
	IndexKeyword
	ConstraintKeyword
	Primary
	Foreign
	Key
	References
	Unique
	Default
	On
	If
	Exists
	Cascade
	Restrict
	No
	Action
	Begin
	Commit
	Rollback
	Transaction
	Work
	EOF
	Unknown
)

func (token Token) String() string {
	switch token.Type {
	case Identifier:
		return "Identifier(" + token.Value + ")"
	case String:
		return "String(" + token.Value + ")"
	case Int:
		return "Int(" + token.Value + ")"
	case Float:
		return "Float(" + token.Value + ")"
	case Wildcard:
		return "Wildcard"
	case Comma:
		return "Comma"
	case Dot:
		return "Dot"
	case Semicolon:
		return "Semicolon"
	case ParenOpen:
		return "ParenOpen"
	case ParenClose:
		return "ParenClose"
	case Minus:
		return "Minus"
	case Equals:
		return "Equals"
	case NotEquals:
		return "NotEquals"
	case LessThan:
		return "LessThan"
	case GreaterThan:
		return "GreaterThan"
	case LessThanOrEqual:
		return "LessThanOrEqual"
	case GreaterThanOrEqual:
		return "GreaterThanOrEqual"
	case EOF:
		return "EOF"
	case Unknown:
		return "Unknown(" + token.Value + ")"
	default:
		return "Keyword(" + toUpper(token.Value) + ")"
	}
}

// describe renders the token for error messages.
func (token Token) describe() string {
	switch token.Type {
	case EOF:
		return "end of input"
	case String:
		return "'" + token.Value + "'"
	default:
		return token.Value
	}
}

type Lexer struct {
	sql          string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
}

func NewLexer(sql string) *Lexer {
	lexer := &Lexer{sql: sql, line: 1}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.position < len(lexer.sql) && lexer.readPosition > 0 {
		if lexer.sql[lexer.position] == '\n' {
			lexer.line++
			lexer.column = 0
		}
	}
	if lexer.readPosition >= len(lexer.sql) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.sql[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
	lexer.column++
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.sql) {
		return 0
	}
	return lexer.sql[lexer.readPosition]
}

func (lexer *Lexer) here() Position {
	return Position{Line: lexer.line, Column: lexer.column, Offset: lexer.position}
}

func (lexer *Lexer) NextToken() Token {
	lexer.skipWhitespaceAndComments()

	pos := lexer.here()
	token := lexer.scan()
	token.Pos = pos
	token.End = lexer.position
	return token
}

func (lexer *Lexer) scan() Token {
	var token Token

	switch lexer.ch {
	case 0:
		return Token{Type: EOF, Value: ""}
	case ',':
		token = Token{Type: Comma, Value: ","}
	case '.':
		token = Token{Type: Dot, Value: "."}
	case ';':
		token = Token{Type: Semicolon, Value: ";"}
	case '(':
		token = Token{Type: ParenOpen, Value: "("}
	case ')':
		token = Token{Type: ParenClose, Value: ")"}
	case '*':
		token = Token{Type: Wildcard, Value: "*"}
	case '-':
		token = Token{Type: Minus, Value: "-"}
	case '\'':
		value, ok := lexer.readString()
		if !ok {
			return Token{Type: Unknown, Value: "'" + value}
		}
		return Token{Type: String, Value: value}
	case '"', '`', '[':
		value, ok := lexer.readQuotedIdentifier()
		if !ok {
			return Token{Type: Unknown, Value: value}
		}
		return Token{Type: Identifier, Value: value, Quoted: true}
	default:
		if isOperator(lexer.ch) {
			operator := lexer.readOperator()
			switch operator {
			case "=", "==":
				return Token{Type: Equals, Value: operator}
			case "!=", "<>":
				return Token{Type: NotEquals, Value: operator}
			case "<":
				return Token{Type: LessThan, Value: operator}
			case ">":
				return Token{Type: GreaterThan, Value: operator}
			case "<=":
				return Token{Type: LessThanOrEqual, Value: operator}
			case ">=":
				return Token{Type: GreaterThanOrEqual, Value: operator}
			default:
				return Token{Type: Unknown, Value: operator}
			}
		} else if isDigit(lexer.ch) {
			num := lexer.readNumber()
			if lexer.ch == '.' && isDigit(lexer.peekChar()) {
				lexer.readChar() // consume '.'
				decimal := lexer.readNumber()
				return Token{Type: Float, Value: num + "." + decimal}
			}
			return Token{Type: Int, Value: num}
		} else if isWordChar(lexer.ch) {
			literal := lexer.readIdentifier()
			return Token{Type: lookupIdentifier(literal), Value: literal}
		}
		token = Token{Type: Unknown, Value: string(lexer.ch)}
	}

	lexer.readChar()
	return token
}

func (lexer *Lexer) PeekToken() Token {
	savedPosition := lexer.position
	savedReadPosition := lexer.readPosition
	savedCh := lexer.ch
	savedLine := lexer.line
	savedColumn := lexer.column

	token := lexer.NextToken()

	lexer.position = savedPosition
	lexer.readPosition = savedReadPosition
	lexer.ch = savedCh
	lexer.line = savedLine
	lexer.column = savedColumn

	return token
}

func (lexer *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r':
			lexer.readChar()
		case lexer.ch == '-' && lexer.peekChar() == '-':
			for lexer.ch != '\n' && lexer.ch != 0 {
				lexer.readChar()
			}
		case lexer.ch == '/' && lexer.peekChar() == '*':
			lexer.readChar()
			lexer.readChar()
			for lexer.ch != 0 && !(lexer.ch == '*' && lexer.peekChar() == '/') {
				lexer.readChar()
			}
			if lexer.ch != 0 {
				lexer.readChar()
				lexer.readChar()
			}
		default:
			return
		}
	}
}

func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for isWordChar(lexer.ch) || isDigit(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readString reads a single-quoted literal; '' is an escaped quote.
func (lexer *Lexer) readString() (string, bool) {
	lexer.readChar() // skip opening quote
	var value []byte
	for {
		switch lexer.ch {
		case 0:
			return string(value), false
		case '\'':
			if lexer.peekChar() == '\'' {
				value = append(value, '\'')
				lexer.readChar()
				lexer.readChar()
				continue
			}
			lexer.readChar() // skip closing quote
			return string(value), true
		default:
			value = append(value, lexer.ch)
			lexer.readChar()
		}
	}
}

func (lexer *Lexer) readQuotedIdentifier() (string, bool) {
	closing := lexer.ch
	if closing == '[' {
		closing = ']'
	}
	lexer.readChar()
	position := lexer.position
	for lexer.ch != closing && lexer.ch != 0 {
		lexer.readChar()
	}
	value := lexer.sql[position:lexer.position]
	if lexer.ch == 0 {
		return value, false
	}
	lexer.readChar() // skip closing delimiter
	return value, true
}

func (lexer *Lexer) readNumber() string {
	position := lexer.position
	for isDigit(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func (lexer *Lexer) readOperator() string {
	position := lexer.position
	for isOperator(lexer.ch) {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func isWordChar(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || ch == '$'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isOperator(ch byte) bool {
	return ch == '=' || ch == '!' || ch == '<' || ch == '>'
}

func lookupIdentifier(id string) TokenType {
	switch toUpper(id) {
	case "AND":
		return And
	case "OR":
		return Or
	case "NOT":
		return Not
	case "IS":
		return Is
	case "NULL":
		return Null
	case "LIKE":
		return Like
	case "TRUE":
		return True
	case "FALSE":
		return False
	case "SELECT":
		return Select
	case "FROM":
		return From
	case "WHERE":
		return Where
	case "INSERT":
		return Insert
	case "INTO":
		return Into
	case "VALUES":
		return Values
	case "UPDATE":
		return Update
	case "SET":
		return Set
	case "DELETE":
		return Delete
	case "CREATE":
		return Create
	case "DROP":
		return Drop
	case "ALTER":
		return Alter
	case "ADD":
		return Add
	case "TABLE":
		return TableKeyword
	case "INDEX":
		return IndexKeyword
	case "CONSTRAINT":
		return ConstraintKeyword
	case "PRIMARY":
		return Primary
	case "FOREIGN":
		return Foreign
	case "KEY":
		return Key
	case "REFERENCES":
		return References
	case "UNIQUE":
		return Unique
	case "DEFAULT":
		return Default
	case "ON":
		return On
	case "IF":
		return If
	case "EXISTS":
		return Exists
	case "CASCADE":
		return Cascade
	case "RESTRICT":
		return Restrict
	case "NO":
		return No
	case "ACTION":
		return Action
	case "BEGIN":
		return Begin
	case "COMMIT":
		return Commit
	case "ROLLBACK":
		return Rollback
	case "TRANSACTION":
		return Transaction
	case "WORK":
		return Work
	default:
		return Identifier
	}
}

// isNonReserved reports keywords that may still be used as plain names.
func isNonReserved(tokenType TokenType) bool {
	switch tokenType {
	case Key, IndexKeyword, If, Exists, Cascade, Restrict, No, Action, Transaction, Work, Begin:
		return true
	default:
		return false
	}
}

// toUpper converts a string to uppercase without allocating for ASCII strings
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'a' && s[j] <= 'z' {
					b[j] = s[j] - 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

func tokenize(sql string) []Token {
	lexer := NewLexer(sql)

	var tokens []Token

	for {
		token := lexer.NextToken()
		tokens = append(tokens, token)
		if token.Type == EOF {
			return tokens
		}
	}
}
