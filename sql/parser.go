package sql

import (
	"strconv"
	"strings"

	"github.com/nickyhof/SchemaDB/core"
)

type StatementType int

const (
	SelectStatementType StatementType = iota
	InsertStatementType
	UpdateStatementType
	DeleteStatementType
	CreateTableStatementType
	CreateIndexStatementType
	AlterTableStatementType
	DropTableStatementType
	BeginStatementType
	CommitStatementType
	RollbackStatementType
)

func (t StatementType) String() string {
	switch t {
	case SelectStatementType:
		return "SELECT"
	case InsertStatementType:
		return "INSERT"
	case UpdateStatementType:
		return "UPDATE"
	case DeleteStatementType:
		return "DELETE"
	case CreateTableStatementType:
		return "CREATE TABLE"
	case CreateIndexStatementType:
		return "CREATE INDEX"
	case AlterTableStatementType:
		return "ALTER TABLE"
	case DropTableStatementType:
		return "DROP TABLE"
	case BeginStatementType:
		return "BEGIN"
	case CommitStatementType:
		return "COMMIT"
	case RollbackStatementType:
		return "ROLLBACK"
	default:
		return "UNKNOWN"
	}
}

type Statement interface {
	Type() StatementType
}

// TableName is a table reference as written. Schema is empty when the
// statement did not qualify the name.
type TableName struct {
	Schema string
	Name   string
}

func (name TableName) Key() core.TableKey {
	return core.NewTableKey(name.Schema, name.Name)
}

type SelectStatement struct {
	Table   TableName
	Columns []string // empty means *
	Where   *Condition
}

type InsertStatement struct {
	Table   TableName
	Columns []string // empty means every column in declaration order
	Values  []core.Value
}

type UpdateStatement struct {
	Table   TableName
	Updates []SetClause
	Where   *Condition
}

type SetClause struct {
	Column string
	Value  core.Value
}

type DeleteStatement struct {
	Table TableName
	Where *Condition
}

type CreateTableStatement struct {
	Table       TableName
	IfNotExists bool
	Columns     []core.Column
	Constraints []Constraint
}

type CreateIndexStatement struct {
	Name        string
	Table       TableName
	Columns     []string
	Unique      bool
	IfNotExists bool
}

// AlterTableStatement is ALTER TABLE ... ADD [CONSTRAINT n] FOREIGN KEY.
type AlterTableStatement struct {
	Table      TableName
	Constraint Constraint
}

type DropTableStatement struct {
	Table    TableName
	IfExists bool
}

type BeginStatement struct{}
type CommitStatement struct{}
type RollbackStatement struct{}

type Operator int

const (
	EqualsOperator Operator = iota
	NotEqualsOperator
	LessThanOperator
	GreaterThanOperator
	LessThanOrEqualOperator
	GreaterThanOrEqualOperator
	LikeOperator
	IsNullOperator
	IsNotNullOperator
)

// Condition is the single comparison a WHERE clause may hold.
type Condition struct {
	Column   string
	Operator Operator
	Value    core.Value // NULL for IS [NOT] NULL
}

type ConstraintKind int

const (
	PrimaryKeyConstraint ConstraintKind = iota
	ForeignKeyConstraint
	UniqueConstraint
	IndexConstraint
)

// Constraint is a table-level constraint. Tables store them in their
// canonical text form (see Constraint.String).
type Constraint struct {
	Kind       ConstraintKind
	Name       string
	Columns    []string
	RefTable   TableName
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

func (s SelectStatement) Type() StatementType {
	return SelectStatementType
}

func (s InsertStatement) Type() StatementType {
	return InsertStatementType
}

func (s UpdateStatement) Type() StatementType {
	return UpdateStatementType
}

func (s DeleteStatement) Type() StatementType {
	return DeleteStatementType
}

func (s CreateTableStatement) Type() StatementType {
	return CreateTableStatementType
}

func (s CreateIndexStatement) Type() StatementType {
	return CreateIndexStatementType
}

func (s AlterTableStatement) Type() StatementType {
	return AlterTableStatementType
}

func (s DropTableStatement) Type() StatementType {
	return DropTableStatementType
}

func (s BeginStatement) Type() StatementType {
	return BeginStatementType
}

func (s CommitStatement) Type() StatementType {
	return CommitStatementType
}

func (s RollbackStatement) Type() StatementType {
	return RollbackStatementType
}

// Definition builds the table a CREATE TABLE statement declares. Primary key
// constraints are folded into the columns; the rest are kept as text.
func (s CreateTableStatement) Definition() *core.Table {
	table := &core.Table{
		Schema:  s.Table.Schema,
		Name:    s.Table.Name,
		Columns: append([]core.Column(nil), s.Columns...),
	}
	for _, constraint := range s.Constraints {
		if constraint.Kind == PrimaryKeyConstraint {
			continue
		}
		table.Constraints = append(table.Constraints, constraint.String())
	}
	table.Normalize()
	return table
}

type Parser struct {
	lexer *Lexer
	sql   string
}

func NewParser(sql string) *Parser {
	lexer := NewLexer(sql)
	return &Parser{lexer: lexer, sql: sql}
}

// Parse parses exactly one statement; a trailing semicolon is allowed.
func Parse(sql string) (Statement, error) {
	return NewParser(sql).Parse()
}

func (parser *Parser) Parse() (Statement, error) {
	statement, err := parser.parseStatement()
	if err != nil {
		return nil, err
	}
	if err := parser.parseEnd(); err != nil {
		return nil, err
	}
	return statement, nil
}

func (parser *Parser) parseStatement() (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Select:
		return ParseSelect(parser)
	case Insert:
		return ParseInsert(parser)
	case Update:
		return ParseUpdate(parser)
	case Delete:
		return ParseDelete(parser)
	case Create:
		return ParseCreate(parser)
	case Drop:
		return ParseDropTable(parser)
	case Alter:
		return ParseAlter(parser)
	case Begin:
		parser.skipTransactionWord()
		return BeginStatement{}, nil
	case Commit:
		parser.skipTransactionWord()
		return CommitStatement{}, nil
	case Rollback:
		parser.skipTransactionWord()
		return RollbackStatement{}, nil
	default:
		return nil, unexpected(token, "SELECT, INSERT, UPDATE, DELETE, CREATE, ALTER, DROP, BEGIN, COMMIT or ROLLBACK")
	}
}

func (parser *Parser) skipTransactionWord() {
	next := parser.lexer.PeekToken()
	if next.Type == Transaction || next.Type == Work {
		parser.lexer.NextToken()
	}
}

func (parser *Parser) parseEnd() error {
	token := parser.lexer.NextToken()
	if token.Type == Semicolon {
		token = parser.lexer.NextToken()
	}
	if token.Type != EOF {
		return unexpected(token, "end of statement")
	}
	return nil
}

func (parser *Parser) expect(tokenType TokenType, expected string) (Token, error) {
	token := parser.lexer.NextToken()
	if token.Type != tokenType {
		return token, unexpected(token, expected)
	}
	return token, nil
}

// accept consumes the next token when it has the given type.
func (parser *Parser) accept(tokenType TokenType) bool {
	if parser.lexer.PeekToken().Type == tokenType {
		parser.lexer.NextToken()
		return true
	}
	return false
}

func isName(token Token) bool {
	return token.Type == Identifier || isNonReserved(token.Type)
}

func (parser *Parser) parseName(expected string) (string, error) {
	token := parser.lexer.NextToken()
	if !isName(token) {
		return "", unexpected(token, expected)
	}
	return token.Value, nil
}

func (parser *Parser) parseTableName() (TableName, error) {
	first, err := parser.parseName("table name")
	if err != nil {
		return TableName{}, err
	}
	if !parser.accept(Dot) {
		return TableName{Name: first}, nil
	}
	second, err := parser.parseName("table name after schema")
	if err != nil {
		return TableName{}, err
	}
	return TableName{Schema: first, Name: second}, nil
}

// parseNameList parses "(a, b, ...)".
func (parser *Parser) parseNameList(expected string) ([]string, error) {
	if _, err := parser.expect(ParenOpen, "'('"); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := parser.parseName(expected)
		if err != nil {
			return nil, err
		}
		names = append(names, name)

		token := parser.lexer.NextToken()
		if token.Type == ParenClose {
			return names, nil
		}
		if token.Type != Comma {
			return nil, unexpected(token, "',' or ')'")
		}
	}
}

func (parser *Parser) parseLiteral() (core.Value, error) {
	token := parser.lexer.NextToken()
	negative := false
	if token.Type == Minus {
		negative = true
		token = parser.lexer.NextToken()
		if token.Type != Int && token.Type != Float {
			return core.Value{}, unexpected(token, "number after '-'")
		}
	}

	switch token.Type {
	case String:
		return core.Text(token.Value), nil
	case Int, Float:
		number, err := strconv.ParseFloat(token.Value, 64)
		if err != nil {
			return core.Value{}, failAt(token, "invalid number %s", token.Value)
		}
		if negative {
			number = -number
		}
		return core.Number(number), nil
	case True:
		return core.Bool(true), nil
	case False:
		return core.Bool(false), nil
	case Null:
		return core.Null(), nil
	default:
		return core.Value{}, unexpected(token, "literal value")
	}
}

// ParseLiteral parses a standalone literal such as a stored column default.
func ParseLiteral(text string) (core.Value, error) {
	parser := NewParser(text)
	value, err := parser.parseLiteral()
	if err != nil {
		return core.Value{}, err
	}
	if err := parser.parseEnd(); err != nil {
		return core.Value{}, err
	}
	return value, nil
}

func ParseSelect(parser *Parser) (Statement, error) {
	var selectStatement SelectStatement

	if !parser.accept(Wildcard) {
		for {
			column, err := parser.parseName("column name or '*'")
			if err != nil {
				return nil, err
			}
			selectStatement.Columns = append(selectStatement.Columns, column)
			if !parser.accept(Comma) {
				break
			}
		}
	}

	if _, err := parser.expect(From, "FROM"); err != nil {
		return nil, err
	}
	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	selectStatement.Table = table

	where, err := parser.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	selectStatement.Where = where

	return selectStatement, nil
}

func (parser *Parser) parseOptionalWhere() (*Condition, error) {
	if !parser.accept(Where) {
		return nil, nil
	}
	return ParseWhere(parser)
}

// ParseWhere parses a single comparison. Compound conditions are rejected.
func ParseWhere(parser *Parser) (*Condition, error) {
	column, err := parser.parseName("column name in WHERE clause")
	if err != nil {
		return nil, err
	}
	condition := &Condition{Column: column}

	token := parser.lexer.NextToken()
	switch token.Type {
	case Is:
		token = parser.lexer.NextToken()
		if token.Type == Not {
			token = parser.lexer.NextToken()
			condition.Operator = IsNotNullOperator
		} else {
			condition.Operator = IsNullOperator
		}
		if token.Type != Null {
			return nil, unexpected(token, "NULL")
		}
		condition.Value = core.Null()
	case Equals, NotEquals, LessThan, GreaterThan, LessThanOrEqual, GreaterThanOrEqual, Like:
		condition.Operator = comparisonOperator(token.Type)
		value, err := parser.parseLiteral()
		if err != nil {
			return nil, err
		}
		if condition.Operator == LikeOperator && value.Kind != core.TextValue {
			return nil, failAt(token, "LIKE requires a string pattern")
		}
		condition.Value = value
	default:
		return nil, unexpected(token, "comparison operator")
	}

	next := parser.lexer.PeekToken()
	if next.Type == And || next.Type == Or {
		return nil, failAt(next, "compound conditions (%s) are not supported", toUpper(next.Value))
	}
	return condition, nil
}

func comparisonOperator(tokenType TokenType) Operator {
	switch tokenType {
	case NotEquals:
		return NotEqualsOperator
	case LessThan:
		return LessThanOperator
	case GreaterThan:
		return GreaterThanOperator
	case LessThanOrEqual:
		return LessThanOrEqualOperator
	case GreaterThanOrEqual:
		return GreaterThanOrEqualOperator
	case Like:
		return LikeOperator
	default:
		return EqualsOperator
	}
}

func ParseInsert(parser *Parser) (Statement, error) {
	var insertStatement InsertStatement

	if _, err := parser.expect(Into, "INTO"); err != nil {
		return nil, err
	}
	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	insertStatement.Table = table

	if parser.lexer.PeekToken().Type == ParenOpen {
		columns, err := parser.parseNameList("column name")
		if err != nil {
			return nil, err
		}
		insertStatement.Columns = columns
	}

	if _, err := parser.expect(Values, "VALUES"); err != nil {
		return nil, err
	}
	open, err := parser.expect(ParenOpen, "'(' after VALUES")
	if err != nil {
		return nil, err
	}

	for {
		value, err := parser.parseLiteral()
		if err != nil {
			return nil, err
		}
		insertStatement.Values = append(insertStatement.Values, value)

		token := parser.lexer.NextToken()
		if token.Type == ParenClose {
			break
		}
		if token.Type != Comma {
			return nil, unexpected(token, "',' or ')' in values list")
		}
	}

	if len(insertStatement.Columns) > 0 && len(insertStatement.Columns) != len(insertStatement.Values) {
		return nil, &ParseError{
			Kind:    ArityError,
			Token:   "(",
			Pos:     open.Pos,
			Message: "INSERT has " + strconv.Itoa(len(insertStatement.Columns)) + " columns but " + strconv.Itoa(len(insertStatement.Values)) + " values",
		}
	}

	return insertStatement, nil
}

func ParseUpdate(parser *Parser) (Statement, error) {
	var updateStatement UpdateStatement

	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	updateStatement.Table = table

	if _, err := parser.expect(Set, "SET"); err != nil {
		return nil, err
	}

	for {
		column, err := parser.parseName("column name in SET")
		if err != nil {
			return nil, err
		}
		if _, err := parser.expect(Equals, "'='"); err != nil {
			return nil, err
		}
		value, err := parser.parseLiteral()
		if err != nil {
			return nil, err
		}
		updateStatement.Updates = append(updateStatement.Updates, SetClause{Column: column, Value: value})
		if !parser.accept(Comma) {
			break
		}
	}

	where, err := parser.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	updateStatement.Where = where

	return updateStatement, nil
}

func ParseDelete(parser *Parser) (Statement, error) {
	var deleteStatement DeleteStatement

	if _, err := parser.expect(From, "FROM"); err != nil {
		return nil, err
	}
	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	deleteStatement.Table = table

	where, err := parser.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	deleteStatement.Where = where

	return deleteStatement, nil
}

func ParseCreate(parser *Parser) (Statement, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case TableKeyword:
		return ParseCreateTable(parser)
	case IndexKeyword:
		return ParseCreateIndex(parser, false)
	case Unique:
		if _, err := parser.expect(IndexKeyword, "INDEX after UNIQUE"); err != nil {
			return nil, err
		}
		return ParseCreateIndex(parser, true)
	default:
		return nil, unexpected(token, "TABLE or INDEX")
	}
}

func (parser *Parser) parseIfNotExists() (bool, error) {
	if !parser.accept(If) {
		return false, nil
	}
	if _, err := parser.expect(Not, "NOT"); err != nil {
		return false, err
	}
	if _, err := parser.expect(Exists, "EXISTS"); err != nil {
		return false, err
	}
	return true, nil
}

func ParseCreateTable(parser *Parser) (Statement, error) {
	var createTableStatement CreateTableStatement

	ifNotExists, err := parser.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	createTableStatement.IfNotExists = ifNotExists

	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	createTableStatement.Table = table

	open, err := parser.expect(ParenOpen, "'(' after table name")
	if err != nil {
		return nil, err
	}

	for {
		if parser.startsTableConstraint() {
			constraint, err := parser.parseTableConstraint()
			if err != nil {
				return nil, err
			}
			createTableStatement.Constraints = append(createTableStatement.Constraints, constraint)
		} else {
			column, inline, err := parser.parseColumnDefinition()
			if err != nil {
				return nil, err
			}
			createTableStatement.Columns = append(createTableStatement.Columns, column)
			createTableStatement.Constraints = append(createTableStatement.Constraints, inline...)
		}

		token := parser.lexer.NextToken()
		if token.Type == ParenClose {
			break
		}
		if token.Type != Comma {
			return nil, unexpected(token, "',' or ')' in table definition")
		}
	}

	if len(createTableStatement.Columns) == 0 {
		return nil, &ParseError{Token: "(", Pos: open.Pos, Message: "table " + table.Name + " declares no columns"}
	}

	// table-level primary keys mark their columns
	for _, constraint := range createTableStatement.Constraints {
		if constraint.Kind != PrimaryKeyConstraint {
			continue
		}
		for _, name := range constraint.Columns {
			found := false
			for i := range createTableStatement.Columns {
				if strings.EqualFold(createTableStatement.Columns[i].Name, name) {
					createTableStatement.Columns[i].PrimaryKey = true
					createTableStatement.Columns[i].Nullable = false
					found = true
				}
			}
			if !found {
				return nil, &ParseError{Token: "(", Pos: open.Pos, Message: "primary key references unknown column " + name}
			}
		}
	}

	return createTableStatement, nil
}

// startsTableConstraint looks ahead without consuming. KEY and INDEX are
// only constraint openers when followed by a name and a column list, so
// columns may still be called "key" or "index".
func (parser *Parser) startsTableConstraint() bool {
	token := parser.lexer.PeekToken()
	switch token.Type {
	case ConstraintKeyword, Primary, Foreign, Unique:
		return true
	case Key, IndexKeyword:
		saved := *parser.lexer
		defer func() { *parser.lexer = saved }()
		parser.lexer.NextToken()
		name := parser.lexer.NextToken()
		return isName(name) && core.ParseColumnKind(name.Value) == core.UnknownKind &&
			parser.lexer.NextToken().Type == ParenOpen
	default:
		return false
	}
}

func (parser *Parser) parseTableConstraint() (Constraint, error) {
	var constraint Constraint

	token := parser.lexer.NextToken()
	if token.Type == ConstraintKeyword {
		name, err := parser.parseName("constraint name")
		if err != nil {
			return constraint, err
		}
		constraint.Name = name
		token = parser.lexer.NextToken()
	}

	switch token.Type {
	case Primary:
		if _, err := parser.expect(Key, "KEY after PRIMARY"); err != nil {
			return constraint, err
		}
		constraint.Kind = PrimaryKeyConstraint
	case Foreign:
		if _, err := parser.expect(Key, "KEY after FOREIGN"); err != nil {
			return constraint, err
		}
		constraint.Kind = ForeignKeyConstraint
	case Unique:
		parser.accept(Key)
		constraint.Kind = UniqueConstraint
	case IndexKeyword, Key:
		if constraint.Name != "" {
			return constraint, unexpected(token, "PRIMARY KEY, FOREIGN KEY or UNIQUE")
		}
		name, err := parser.parseName("index name")
		if err != nil {
			return constraint, err
		}
		constraint.Name = name
		constraint.Kind = IndexConstraint
	default:
		return constraint, unexpected(token, "PRIMARY KEY, FOREIGN KEY, UNIQUE or INDEX")
	}

	columns, err := parser.parseNameList("column name")
	if err != nil {
		return constraint, err
	}
	constraint.Columns = columns

	if constraint.Kind == ForeignKeyConstraint {
		if err := parser.parseReferences(&constraint); err != nil {
			return constraint, err
		}
	}

	return constraint, nil
}

// parseReferences parses "REFERENCES t (c, ...) [ON DELETE a] [ON UPDATE a]".
func (parser *Parser) parseReferences(constraint *Constraint) error {
	if _, err := parser.expect(References, "REFERENCES"); err != nil {
		return err
	}
	table, err := parser.parseTableName()
	if err != nil {
		return err
	}
	constraint.RefTable = table

	columns, err := parser.parseNameList("referenced column")
	if err != nil {
		return err
	}
	if len(columns) != len(constraint.Columns) {
		return &ParseError{
			Pos:     parser.lexer.here(),
			Message: "foreign key has " + strconv.Itoa(len(constraint.Columns)) + " columns but references " + strconv.Itoa(len(columns)),
		}
	}
	constraint.RefColumns = columns

	for parser.lexer.PeekToken().Type == On {
		parser.lexer.NextToken()
		event := parser.lexer.NextToken()
		action, err := parser.parseReferentialAction()
		if err != nil {
			return err
		}
		switch event.Type {
		case Delete:
			constraint.OnDelete = action
		case Update:
			constraint.OnUpdate = action
		default:
			return unexpected(event, "DELETE or UPDATE after ON")
		}
	}
	return nil
}

func (parser *Parser) parseReferentialAction() (string, error) {
	token := parser.lexer.NextToken()
	switch token.Type {
	case Cascade:
		return "CASCADE", nil
	case Restrict:
		return "RESTRICT", nil
	case No:
		if _, err := parser.expect(Action, "ACTION after NO"); err != nil {
			return "", err
		}
		return "NO ACTION", nil
	case Set:
		next := parser.lexer.NextToken()
		switch next.Type {
		case Null:
			return "SET NULL", nil
		case Default:
			return "SET DEFAULT", nil
		default:
			return "", unexpected(next, "NULL or DEFAULT after SET")
		}
	default:
		return "", unexpected(token, "CASCADE, RESTRICT, NO ACTION, SET NULL or SET DEFAULT")
	}
}

// typeWords may continue a multi-word type name.
var typeWords = map[string]bool{
	"PRECISION": true,
	"VARYING":   true,
	"WITH":      true,
	"WITHOUT":   true,
	"TIME":      true,
	"ZONE":      true,
	"UNSIGNED":  true,
}

func (parser *Parser) parseColumnType() (string, error) {
	first := parser.lexer.NextToken()
	if first.Type != Identifier || first.Quoted {
		return "", unexpected(first, "column type")
	}
	end := first.End

	for {
		next := parser.lexer.PeekToken()
		if next.Type == Identifier && !next.Quoted && typeWords[toUpper(next.Value)] {
			parser.lexer.NextToken()
			end = next.End
			continue
		}
		if next.Type == ParenOpen {
			parser.lexer.NextToken()
			for {
				size := parser.lexer.NextToken()
				if size.Type != Int {
					return "", unexpected(size, "type size")
				}
				closing := parser.lexer.NextToken()
				if closing.Type == ParenClose {
					end = closing.End
					break
				}
				if closing.Type != Comma {
					return "", unexpected(closing, "',' or ')' in type size")
				}
			}
			continue
		}
		break
	}

	typeName := parser.sql[first.Pos.Offset:end]
	if core.ParseColumnKind(typeName) == core.UnknownKind {
		return "", &ParseError{Token: typeName, Pos: first.Pos, Message: "unknown column type " + typeName}
	}
	return typeName, nil
}

// parseColumnDefinition returns the column plus the table constraints its
// inline UNIQUE and REFERENCES options imply.
func (parser *Parser) parseColumnDefinition() (core.Column, []Constraint, error) {
	name, err := parser.parseName("column name")
	if err != nil {
		return core.Column{}, nil, err
	}
	typeName, err := parser.parseColumnType()
	if err != nil {
		return core.Column{}, nil, err
	}
	column := core.NewColumn(name, typeName)

	var inline []Constraint
	for {
		token := parser.lexer.PeekToken()
		switch token.Type {
		case Not:
			parser.lexer.NextToken()
			if _, err := parser.expect(Null, "NULL after NOT"); err != nil {
				return column, nil, err
			}
			column.Nullable = false
		case Null:
			parser.lexer.NextToken()
			column.Nullable = true
		case Default:
			parser.lexer.NextToken()
			def, err := parser.parseDefault()
			if err != nil {
				return column, nil, err
			}
			column.Default = &def
		case Primary:
			parser.lexer.NextToken()
			if _, err := parser.expect(Key, "KEY after PRIMARY"); err != nil {
				return column, nil, err
			}
			column.PrimaryKey = true
			column.Nullable = false
		case Unique:
			parser.lexer.NextToken()
			inline = append(inline, Constraint{Kind: UniqueConstraint, Columns: []string{name}})
		case References:
			constraint := Constraint{Kind: ForeignKeyConstraint, Columns: []string{name}}
			if err := parser.parseReferences(&constraint); err != nil {
				return column, nil, err
			}
			inline = append(inline, constraint)
		default:
			if column.PrimaryKey {
				column.Nullable = false
			}
			return column, inline, nil
		}
	}
}

// parseDefault returns the default expression's source text: a literal or a
// niladic function such as CURRENT_TIMESTAMP or now().
func (parser *Parser) parseDefault() (string, error) {
	token := parser.lexer.PeekToken()
	start := token.Pos.Offset

	if token.Type == Identifier && !token.Quoted {
		parser.lexer.NextToken()
		end := token.End
		if parser.accept(ParenOpen) {
			closing, err := parser.expect(ParenClose, "')'")
			if err != nil {
				return "", err
			}
			end = closing.End
		}
		return parser.sql[start:end], nil
	}

	if _, err := parser.parseLiteral(); err != nil {
		return "", err
	}
	return parser.sql[start:parser.lexer.position], nil
}

// ParseCreateIndex parses: CREATE [UNIQUE] INDEX [IF NOT EXISTS] name ON table (columns)
func ParseCreateIndex(parser *Parser, unique bool) (Statement, error) {
	statement := CreateIndexStatement{Unique: unique}

	ifNotExists, err := parser.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	statement.IfNotExists = ifNotExists

	name, err := parser.parseName("index name")
	if err != nil {
		return nil, err
	}
	statement.Name = name

	if _, err := parser.expect(On, "ON"); err != nil {
		return nil, err
	}
	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement.Table = table

	columns, err := parser.parseNameList("column name")
	if err != nil {
		return nil, err
	}
	statement.Columns = columns

	return statement, nil
}

func ParseDropTable(parser *Parser) (Statement, error) {
	var statement DropTableStatement

	if _, err := parser.expect(TableKeyword, "TABLE"); err != nil {
		return nil, err
	}
	if parser.accept(If) {
		if _, err := parser.expect(Exists, "EXISTS"); err != nil {
			return nil, err
		}
		statement.IfExists = true
	}
	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement.Table = table

	return statement, nil
}

// ParseAlter parses: ALTER TABLE name ADD [CONSTRAINT n] FOREIGN KEY (c) REFERENCES t (c) [actions]
func ParseAlter(parser *Parser) (Statement, error) {
	var statement AlterTableStatement

	if _, err := parser.expect(TableKeyword, "TABLE"); err != nil {
		return nil, err
	}
	table, err := parser.parseTableName()
	if err != nil {
		return nil, err
	}
	statement.Table = table

	if _, err := parser.expect(Add, "ADD"); err != nil {
		return nil, err
	}

	next := parser.lexer.PeekToken()
	if next.Type != ConstraintKeyword && next.Type != Foreign {
		parser.lexer.NextToken()
		return nil, unexpected(next, "FOREIGN KEY or CONSTRAINT")
	}
	constraint, err := parser.parseTableConstraint()
	if err != nil {
		return nil, err
	}
	if constraint.Kind != ForeignKeyConstraint {
		return nil, &ParseError{Pos: next.Pos, Message: "ALTER TABLE only supports ADD FOREIGN KEY"}
	}
	statement.Constraint = constraint

	return statement, nil
}

// ParseConstraint parses constraint text as stored on a table, for example
// "CONSTRAINT fk_user FOREIGN KEY (user_id) REFERENCES users (id)".
func ParseConstraint(text string) (Constraint, error) {
	parser := NewParser(text)
	constraint, err := parser.parseTableConstraint()
	if err != nil {
		return Constraint{}, err
	}
	if err := parser.parseEnd(); err != nil {
		return Constraint{}, err
	}
	return constraint, nil
}
