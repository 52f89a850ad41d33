package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yammerjp/gocovrun/internal/gocover"
)

// mockDriver implements the database/sql/driver interfaces for testing
type mockDriver struct {
	mu           sync.Mutex
	connectError error
	pingErr      error
	execErr      error
	execErrOn    string
	queryErr     error
	row          []driver.Value
	nextID       int64
	execs        []mockExec
	committed    int
	rolledBack   int
}

type mockExec struct {
	query string
	args  []driver.Value
}

func (d *mockDriver) Open(name string) (driver.Conn, error) {
	if d.connectError != nil {
		return nil, d.connectError
	}
	return &mockConn{driver: d}, nil
}

type mockConn struct {
	driver *mockDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return &mockStmt{conn: c, query: query}, nil
}

func (c *mockConn) Close() error {
	return nil
}

func (c *mockConn) Begin() (driver.Tx, error) {
	return &mockTx{driver: c.driver}, nil
}

func (c *mockConn) Ping(ctx context.Context) error {
	return c.driver.pingErr
}

type mockTx struct {
	driver *mockDriver
}

func (tx *mockTx) Commit() error {
	tx.driver.mu.Lock()
	defer tx.driver.mu.Unlock()
	tx.driver.committed++
	return nil
}

func (tx *mockTx) Rollback() error {
	tx.driver.mu.Lock()
	defer tx.driver.mu.Unlock()
	tx.driver.rolledBack++
	return nil
}

type mockStmt struct {
	conn  *mockConn
	query string
}

func (s *mockStmt) Close() error {
	return nil
}

func (s *mockStmt) NumInput() int {
	return -1
}

func (s *mockStmt) Exec(args []driver.Value) (driver.Result, error) {
	d := s.conn.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.execErr != nil && strings.Contains(s.query, d.execErrOn) {
		return nil, d.execErr
	}
	d.execs = append(d.execs, mockExec{query: s.query, args: args})
	d.nextID++
	return driver.RowsAffected(1), nil
}

func (s *mockStmt) Query(args []driver.Value) (driver.Rows, error) {
	d := s.conn.driver
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	return &mockRows{values: d.row}, nil
}

type mockRows struct {
	values []driver.Value
	read   bool
}

func (r *mockRows) Columns() []string {
	return []string{"statements", "missed"}
}

func (r *mockRows) Close() error {
	return nil
}

func (r *mockRows) Next(dest []driver.Value) error {
	if r.read || r.values == nil {
		return io.EOF
	}
	r.read = true
	copy(dest, r.values)
	return nil
}

// resultDriver wraps mockDriver so that Exec returns a usable insert id.
type resultDriver struct {
	*mockDriver
}

func (d resultDriver) Open(name string) (driver.Conn, error) {
	if d.connectError != nil {
		return nil, d.connectError
	}
	return &resultConn{mockConn{driver: d.mockDriver}}, nil
}

type resultConn struct {
	mockConn
}

func (c *resultConn) Prepare(query string) (driver.Stmt, error) {
	return &resultStmt{mockStmt{conn: &c.mockConn, query: query}}, nil
}

type resultStmt struct {
	mockStmt
}

func (s *resultStmt) Exec(args []driver.Value) (driver.Result, error) {
	if _, err := s.mockStmt.Exec(args); err != nil {
		return nil, err
	}
	return insertResult{id: s.conn.driver.nextID}, nil
}

type insertResult struct {
	id int64
}

func (r insertResult) LastInsertId() (int64, error) { return r.id, nil }
func (r insertResult) RowsAffected() (int64, error) { return 1, nil }

var registerOnce sync.Map

func newMockStore(t *testing.T, name string, d *mockDriver) *Store {
	t.Helper()
	driverName := "mock-history-" + name
	if _, loaded := registerOnce.LoadOrStore(driverName, true); !loaded {
		sql.Register(driverName, resultDriver{d})
	}
	db, err := sql.Open(driverName, "test")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	s := &Store{db: db}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenStore(t *testing.T) {
	sql.Register("mock-open-success", &mockDriver{})
	sql.Register("mock-open-ping-fail", &mockDriver{pingErr: errors.New("ping failed")})
	sql.Register("mock-open-connect-fail", &mockDriver{connectError: errors.New("connect failed")})

	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr bool
		errMsg  string
	}{
		{name: "empty DSN", driver: "mock-open-success", dsn: "", wantErr: true, errMsg: "DSN is required"},
		{name: "successful connection", driver: "mock-open-success", dsn: "test"},
		{name: "ping failure", driver: "mock-open-ping-fail", dsn: "test", wantErr: true, errMsg: "failed to ping database"},
		{name: "connection failure", driver: "mock-open-connect-fail", dsn: "test", wantErr: true, errMsg: "failed to ping database"},
		{name: "unknown driver", driver: "no-such-driver", dsn: "test", wantErr: true, errMsg: "failed to open database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(tt.driver, tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Errorf("openStore() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("openStore() error = %v, want to contain %v", err, tt.errMsg)
			}
			if store != nil {
				store.Close()
			}
		})
	}
}

func TestNewStore_EmptyDSN(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Errorf("NewStore(\"\") expected error")
	}
}

func TestStore_Close(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() with nil db should not error, got %v", err)
	}
}

func TestStore_Migrate(t *testing.T) {
	d := &mockDriver{}
	s := newMockStore(t, "migrate", d)

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if len(d.execs) != 2 {
		t.Fatalf("Migrate() ran %d statements, want 2", len(d.execs))
	}
	if !strings.Contains(d.execs[0].query, "coverage_runs") || !strings.Contains(d.execs[1].query, "coverage_files") {
		t.Errorf("Migrate() statements = %v", d.execs)
	}

	failing := &mockDriver{execErr: errors.New("denied"), execErrOn: "CREATE"}
	fs := newMockStore(t, "migrate-fail", failing)
	if err := fs.Migrate(context.Background()); err == nil {
		t.Errorf("Migrate() expected error")
	}
}

func TestStore_Record(t *testing.T) {
	files := []gocover.FileSummary{
		{Name: "example.com/m/a.go", Statements: 10, Missed: 2, Missing: []gocover.LineRange{{Start: 4, End: 5}}},
		{Name: "example.com/m/b.go", Statements: 5, Missed: 0},
	}
	run := Run{Suite: "nightly", StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), ExitCode: 1}

	tests := []struct {
		name          string
		run           Run
		execErr       error
		execErrOn     string
		wantErr       bool
		errMsg        string
		wantExecs     int
		wantCommitted int
	}{
		{
			name:          "records run and files",
			run:           run,
			wantExecs:     3,
			wantCommitted: 1,
		},
		{
			name:    "invalid suite",
			run:     Run{Suite: "bad suite"},
			wantErr: true,
			errMsg:  "invalid characters",
		},
		{
			name:      "run insert fails",
			run:       run,
			execErr:   errors.New("insert failed"),
			execErrOn: "coverage_runs",
			wantErr:   true,
			errMsg:    "failed to record run",
		},
		{
			name:      "file insert fails",
			run:       run,
			execErr:   errors.New("insert failed"),
			execErrOn: "coverage_files",
			wantErr:   true,
			errMsg:    "failed to record example.com/m/a.go",
			wantExecs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDriver{execErr: tt.execErr, execErrOn: tt.execErrOn}
			s := newMockStore(t, "record-"+tt.name, d)

			id, err := s.Record(context.Background(), tt.run, files)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Record() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Record() error = %v, want to contain %v", err, tt.errMsg)
			}
			if len(d.execs) != tt.wantExecs {
				t.Errorf("Record() ran %d statements, want %d", len(d.execs), tt.wantExecs)
			}
			if d.committed != tt.wantCommitted {
				t.Errorf("Record() committed %d times, want %d", d.committed, tt.wantCommitted)
			}
			if tt.wantErr {
				return
			}
			if id != 1 {
				t.Errorf("Record() id = %d, want 1", id)
			}
			runArgs := d.execs[0].args
			if runArgs[0] != "nightly" || runArgs[3] != int64(15) || runArgs[4] != int64(2) {
				t.Errorf("run row args = %v", runArgs)
			}
			fileArgs := d.execs[1].args
			if fileArgs[0] != int64(1) || fileArgs[1] != "example.com/m/a.go" || fileArgs[4] != "4-5" {
				t.Errorf("file row args = %v", fileArgs)
			}
		})
	}
}

func TestStore_LastPercent(t *testing.T) {
	tests := []struct {
		name     string
		suite    string
		row      []driver.Value
		queryErr error
		want     float64
		wantOK   bool
		wantErr  bool
	}{
		{name: "previous run", suite: "nightly", row: []driver.Value{int64(20), int64(5)}, want: 75, wantOK: true},
		{name: "no history", suite: "nightly", row: nil, wantOK: false},
		{name: "null totals", suite: "nightly", row: []driver.Value{nil, nil}, wantOK: false},
		{name: "query error", suite: "nightly", queryErr: errors.New("gone"), wantErr: true},
		{name: "invalid suite", suite: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDriver{row: tt.row, queryErr: tt.queryErr}
			s := newMockStore(t, "last-"+tt.name, d)

			got, ok, err := s.LastPercent(context.Background(), tt.suite)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LastPercent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Errorf("LastPercent() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("LastPercent() = %v, want %v", got, tt.want)
			}
		})
	}
}
