package dbadmin

import "strings"

// Statement is one executable statement of a script. Line is the 1-based
// line on which the statement text starts.
type Statement struct {
	Text string
	Line int
}

// SplitStatements splits a MySQL script on its active delimiter. Delimiters
// inside quoted strings, quoted identifiers and comments do not split.
// Comments are dropped except /*! ... */ and /*+ ... */, which the server
// executes. A DELIMITER line changes the delimiter the way the mysql client
// does. Fragments holding nothing but whitespace and comments are not
// statements.
func SplitStatements(script string) []Statement {
	sp := &splitter{src: script, delimiter: ";", line: 1}
	sp.run()
	return sp.out
}

type splitter struct {
	src       string
	pos       int
	line      int
	delimiter string

	buf       strings.Builder
	startLine int
	out       []Statement
}

func (s *splitter) run() {
	for s.pos < len(s.src) {
		if s.atLineStart() && s.bufferBlank() && s.delimiterDirective() {
			continue
		}

		c := s.src[s.pos]
		switch {
		case strings.HasPrefix(s.src[s.pos:], s.delimiter):
			s.pos += len(s.delimiter)
			s.flush()
		case c == '\'' || c == '"' || c == '`':
			s.quoted(c)
		case c == '#':
			s.skipLineComment()
		case c == '-' && s.dashComment():
			s.skipLineComment()
		case c == '/' && s.peek(1) == '*':
			if next := s.peek(2); next == '!' || next == '+' {
				s.copyBlockComment()
			} else {
				s.skipBlockComment()
			}
		default:
			s.emit(c)
			s.pos++
		}
	}
	s.flush()
}

func (s *splitter) peek(offset int) byte {
	if s.pos+offset >= len(s.src) {
		return 0
	}
	return s.src[s.pos+offset]
}

func (s *splitter) atLineStart() bool {
	return s.pos == 0 || s.src[s.pos-1] == '\n'
}

func (s *splitter) bufferBlank() bool {
	return s.startLine == 0
}

func (s *splitter) emit(c byte) {
	if s.startLine == 0 && !isSpace(c) {
		s.startLine = s.line
	}
	if c == '\n' {
		s.line++
	}
	s.buf.WriteByte(c)
}

func (s *splitter) flush() {
	text := strings.TrimSpace(s.buf.String())
	if text != "" {
		s.out = append(s.out, Statement{Text: text, Line: s.startLine})
	}
	s.buf.Reset()
	s.startLine = 0
}

// delimiterDirective consumes a "DELIMITER xx" line and reports whether it
// did.
func (s *splitter) delimiterDirective() bool {
	end := strings.IndexByte(s.src[s.pos:], '\n')
	lineText := s.src[s.pos:]
	if end >= 0 {
		lineText = s.src[s.pos : s.pos+end]
	}
	fields := strings.Fields(lineText)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "DELIMITER") {
		return false
	}
	s.delimiter = fields[1]
	if end < 0 {
		s.pos = len(s.src)
		return true
	}
	s.pos += end + 1
	s.line++
	return true
}

func (s *splitter) quoted(quote byte) {
	s.emit(quote)
	s.pos++
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && quote != '`' && s.pos+1 < len(s.src):
			s.emit(c)
			s.emit(s.src[s.pos+1])
			s.pos += 2
		case c == quote && s.peek(1) == quote:
			s.emit(c)
			s.emit(c)
			s.pos += 2
		case c == quote:
			s.emit(c)
			s.pos++
			return
		default:
			s.emit(c)
			s.pos++
		}
	}
}

// dashComment reports whether "--" at pos starts a comment. MySQL requires
// whitespace or end of input after the dashes.
func (s *splitter) dashComment() bool {
	if s.peek(1) != '-' {
		return false
	}
	if s.pos+2 >= len(s.src) {
		return true
	}
	return isSpace(s.src[s.pos+2])
}

func (s *splitter) skipLineComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *splitter) skipBlockComment() {
	end := strings.Index(s.src[s.pos+2:], "*/")
	stop := len(s.src)
	if end >= 0 {
		stop = s.pos + 2 + end + 2
	}
	s.line += strings.Count(s.src[s.pos:stop], "\n")
	s.pos = stop
	s.buf.WriteByte(' ')
}

func (s *splitter) copyBlockComment() {
	end := strings.Index(s.src[s.pos+2:], "*/")
	stop := len(s.src)
	if end >= 0 {
		stop = s.pos + 2 + end + 2
	}
	for s.pos < stop {
		s.emit(s.src[s.pos])
		s.pos++
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}
