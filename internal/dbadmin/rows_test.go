package dbadmin

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestReadRowsRejectsOutOfRangeArguments(t *testing.T) {
	svc, mock, pools := newTestService(t)
	cases := []struct{ page, limit int }{
		{0, 10},
		{-1, 10},
		{1, 0},
		{1, 101},
		{math.MaxInt, 2},
		{math.MaxInt/100 + 2, 100},
	}
	for _, tc := range cases {
		_, err := svc.ReadRows(context.Background(), "p1", "users", tc.page, tc.limit)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("ReadRows(page=%d, limit=%d) error = %v, want ErrInvalidArgument", tc.page, tc.limit, err)
		}
	}
	if pools.leased != 0 {
		t.Fatalf("leased = %d, want 0", pools.leased)
	}
	assertSQLMock(t, mock)
}

func TestReadRowsReturnsPageInColumnOrder(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.MatchExpectationsInOrder(false)
	expectListTables(mock, "posts", "users")
	expectDescribe(mock, "users", usersColumns...)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name`, `bio` FROM `users` ORDER BY `id` LIMIT 2 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "bio"}).
			AddRow([]byte("1"), []byte("alice"), nil).
			AddRow([]byte("2"), []byte("bob"), []byte("hi")))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(3)))

	page, err := svc.ReadRows(context.Background(), "p1", "users", 1, 2)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(page.Columns) != 3 || page.Columns[0] != "id" || page.Columns[1] != "name" || page.Columns[2] != "bio" {
		t.Fatalf("Columns = %#v", page.Columns)
	}
	if page.Total != 3 || page.Page != 1 || page.Limit != 2 {
		t.Fatalf("page = total %d page %d limit %d", page.Total, page.Page, page.Limit)
	}
	if len(page.Rows) != 2 {
		t.Fatalf("len(Rows) = %d", len(page.Rows))
	}
	for i, row := range page.Rows {
		if len(row.Columns()) != len(page.Columns) || len(row.Values()) != len(page.Columns) {
			t.Fatalf("row %d has %d keys, want %d", i, len(row.Columns()), len(page.Columns))
		}
		for j, column := range page.Columns {
			if row.Columns()[j] != column {
				t.Fatalf("row %d key %d = %q, want %q", i, j, row.Columns()[j], column)
			}
		}
	}
	if page.Rows[0].Value("id") != json.Number("1") {
		t.Fatalf("id = %#v, want json.Number(1)", page.Rows[0].Value("id"))
	}
	if page.Rows[0].Value("name") != "alice" || page.Rows[0].Value("bio") != nil {
		t.Fatalf("row 0 = %#v", page.Rows[0])
	}
	if page.Rows[1].Value("bio") != "hi" {
		t.Fatalf("row 1 = %#v", page.Rows[1])
	}

	encoded, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("json.Marshal(page) error = %v", err)
	}
	want := `"rows":[{"id":1,"name":"alice","bio":null},{"id":2,"name":"bob","bio":"hi"}]`
	if !strings.Contains(string(encoded), want) {
		t.Fatalf("encoded page = %s, want rows %s", encoded, want)
	}
	assertSQLMock(t, mock)
}

func TestReadRowsOffsetsByPage(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.MatchExpectationsInOrder(false)
	expectListTables(mock, "events")
	expectDescribe(mock, "events",
		testColumn{name: "at", columnType: "datetime", nullable: "NO"},
		testColumn{name: "payload", columnType: "blob", nullable: "YES"},
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `at`, `payload` FROM `events` ORDER BY `at`, `payload` LIMIT 50 OFFSET 100")).
		WillReturnRows(sqlmock.NewRows([]string{"at", "payload"}).
			AddRow([]byte("2026-01-01 00:00:00"), []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `events`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(101)))

	page, err := svc.ReadRows(context.Background(), "p1", "events", 3, 50)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(page.Rows) != 1 {
		t.Fatalf("len(Rows) = %d", len(page.Rows))
	}
	if got := page.Rows[0].Value("payload"); got != "0xDEADBEEF00010203… (10 bytes)" {
		t.Fatalf("payload = %#v", got)
	}
	if got := page.Rows[0].Value("at"); got != "2026-01-01 00:00:00" {
		t.Fatalf("at = %#v", got)
	}
	assertSQLMock(t, mock)
}

func TestReadRowsUnknownTable(t *testing.T) {
	svc, mock, _ := newTestService(t)
	expectListTables(mock, "users")

	_, err := svc.ReadRows(context.Background(), "p1", "ghost", 1, 10)
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("ReadRows() error = %v, want ErrTableNotFound", err)
	}
	assertSQLMock(t, mock)
}
