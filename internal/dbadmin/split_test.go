package dbadmin

import (
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []Statement
	}{
		{
			name:   "simple",
			script: "CREATE TABLE a (x INT);\nINSERT INTO a VALUES (1);",
			want: []Statement{
				{Text: "CREATE TABLE a (x INT)", Line: 1},
				{Text: "INSERT INTO a VALUES (1)", Line: 2},
			},
		},
		{
			name:   "missing trailing delimiter",
			script: "SELECT 1;\nSELECT 2",
			want: []Statement{
				{Text: "SELECT 1", Line: 1},
				{Text: "SELECT 2", Line: 2},
			},
		},
		{
			name:   "delimiters inside quotes",
			script: `INSERT INTO t VALUES ('a;b', "c;d", 'it''s;', 'back\';slash');SELECT ` + "`we;ird`" + ` FROM t;`,
			want: []Statement{
				{Text: `INSERT INTO t VALUES ('a;b', "c;d", 'it''s;', 'back\';slash')`, Line: 1},
				{Text: "SELECT `we;ird` FROM t", Line: 1},
			},
		},
		{
			name:   "comments dropped",
			script: "-- header; still comment\n# another; comment\n/* block; comment */\nSELECT 1; -- trailing\n/* only a comment */;\n",
			want: []Statement{
				{Text: "SELECT 1", Line: 4},
			},
		},
		{
			name:   "double dash without space is an operator",
			script: "SELECT 5--1;",
			want: []Statement{
				{Text: "SELECT 5--1", Line: 1},
			},
		},
		{
			name:   "executable comments kept",
			script: "/*!40101 SET NAMES utf8mb4 */;\nSELECT /*+ MAX_EXECUTION_TIME(1000) */ 1;",
			want: []Statement{
				{Text: "/*!40101 SET NAMES utf8mb4 */", Line: 1},
				{Text: "SELECT /*+ MAX_EXECUTION_TIME(1000) */ 1", Line: 2},
			},
		},
		{
			name: "delimiter directive",
			script: "DELIMITER $$\n" +
				"CREATE TRIGGER trg BEFORE INSERT ON t FOR EACH ROW BEGIN SET NEW.x = 1; END$$\n" +
				"DELIMITER ;\n" +
				"SELECT 1;",
			want: []Statement{
				{Text: "CREATE TRIGGER trg BEFORE INSERT ON t FOR EACH ROW BEGIN SET NEW.x = 1; END", Line: 2},
				{Text: "SELECT 1", Line: 4},
			},
		},
		{
			name:   "multi-line statement keeps start line",
			script: "\n\nCREATE TABLE b (\n  id INT\n);\n\nDROP TABLE b;",
			want: []Statement{
				{Text: "CREATE TABLE b (\n  id INT\n)", Line: 3},
				{Text: "DROP TABLE b", Line: 7},
			},
		},
		{
			name:   "unterminated string swallows rest",
			script: "SELECT 'abc; SELECT 2",
			want: []Statement{
				{Text: "SELECT 'abc; SELECT 2", Line: 1},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitStatements(tc.script)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("SplitStatements() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestSplitStatementsEmptyInputs(t *testing.T) {
	for _, script := range []string{"", "   \n\t", ";;;", "-- nothing here\n", "/* a */ ; # b"} {
		if got := SplitStatements(script); len(got) != 0 {
			t.Fatalf("SplitStatements(%q) = %#v, want none", script, got)
		}
	}
}
