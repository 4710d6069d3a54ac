//go:build !no_mysql

package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/schema"
)

func testConfig() database.Config {
	return database.Config{
		Driver:   database.DriverMySQL,
		Host:     "127.0.0.1",
		User:     "ddnet",
		Password: "s3cret",
		Database: "ddnet",
		Prefix:   "record",
		Setup:    true,
	}
}

// mockOpener hands out one sqlmock database per Connect, in order.
type mockOpener struct {
	t     *testing.T
	mocks []sqlmock.Sqlmock
	dbs   []*sql.DB
	calls int
	last  *gomysql.Config
}

func newMockOpener(t *testing.T, n int) *mockOpener {
	o := &mockOpener{t: t}
	for i := 0; i < n; i++ {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		o.dbs = append(o.dbs, db)
		o.mocks = append(o.mocks, mock)
	}
	return o
}

func (o *mockOpener) open(_ context.Context, mc *gomysql.Config) (*sql.DB, error) {
	o.last = mc
	if o.calls >= len(o.dbs) {
		return nil, errors.New("unexpected connect")
	}
	db := o.dbs[o.calls]
	o.calls++
	return db, nil
}

func (o *mockOpener) verify() {
	for _, m := range o.mocks {
		assert.NoError(o.t, m.ExpectationsWereMet())
	}
}

func expectSession(mock sqlmock.Sqlmock, setup bool) {
	mock.ExpectExec("SET CHARACTER SET utf8mb4").WillReturnResult(sqlmock.NewResult(0, 0))
	if setup {
		mock.ExpectExec("CREATE DATABASE IF NOT EXISTS `ddnet` CHARACTER SET utf8mb4").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("USE `ddnet`").WillReturnResult(sqlmock.NewResult(0, 0))
	if setup {
		for _, stmt := range schema.Bootstrap("record", schema.MySQL, schema.Options{}) {
			mock.ExpectExec(stmt.SQL).WillReturnResult(sqlmock.NewResult(0, 0))
		}
	}
}

func TestConnect_SetupRunsOnce(t *testing.T) {
	o := newMockOpener(t, 2)
	expectSession(o.mocks[0], true)
	expectSession(o.mocks[1], false)

	c := newConn(testConfig(), nil, o.open)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.InUse())
	assert.True(t, c.Connected())
	assert.Empty(t, c.LastError())
	assert.False(t, c.SetupPending())
	c.Disconnect()

	// Reconnect: the previous session is torn down, bootstrap is skipped.
	require.NoError(t, c.Connect(ctx))
	c.Disconnect()

	assert.Equal(t, 2, o.calls)
	o.verify()
}

func TestConnect_ParamsHaveNoDefaultDatabase(t *testing.T) {
	o := newMockOpener(t, 1)
	expectSession(o.mocks[0], false)

	cfg := testConfig()
	cfg.Setup = false
	c := newConn(cfg, nil, o.open)
	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()

	require.NotNil(t, o.last)
	assert.Equal(t, "", o.last.DBName)
	assert.Equal(t, "127.0.0.1:3306", o.last.Addr)
	assert.Equal(t, "tcp", o.last.Net)
	assert.Equal(t, 60*time.Second, o.last.Timeout)
	assert.Equal(t, "utf8mb4_bin", o.last.Collation)
	o.verify()
}

func TestConnect_BootstrapFailureKeepsSetupPending(t *testing.T) {
	o := newMockOpener(t, 2)
	mock := o.mocks[0]
	mock.ExpectExec("SET CHARACTER SET utf8mb4").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS `ddnet` CHARACTER SET utf8mb4").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("USE `ddnet`").WillReturnResult(sqlmock.NewResult(0, 0))
	stmts := schema.Bootstrap("record", schema.MySQL, schema.Options{})
	mock.ExpectExec(stmts[0].SQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(stmts[1].SQL).WillReturnError(&gomysql.MySQLError{Number: 1142, Message: "CREATE command denied"})
	expectSession(o.mocks[1], true)

	c := newConn(testConfig(), nil, o.open)
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsSetupFailed(err))
	assert.False(t, c.InUse())
	assert.False(t, c.Connected())
	assert.True(t, c.SetupPending())
	assert.Contains(t, c.LastError(), "create table record_teamrace")
	assert.LessOrEqual(t, len(c.LastError()), errs.DetailCapacity)

	// The next successful connect retries the whole bootstrap.
	require.NoError(t, c.Connect(context.Background()))
	assert.False(t, c.SetupPending())
	c.Disconnect()
	o.verify()
}

func TestConnect_UnknownDatabaseWithoutSetup(t *testing.T) {
	o := newMockOpener(t, 1)
	mock := o.mocks[0]
	mock.ExpectExec("SET CHARACTER SET utf8mb4").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("USE `ddnet`").WillReturnError(&gomysql.MySQLError{Number: errUnknownDatabase, Message: "Unknown database 'ddnet'"})

	cfg := testConfig()
	cfg.Setup = false
	c := newConn(cfg, nil, o.open)
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.Contains(t, c.LastError(), "Unknown database")
	o.verify()
}

func TestConnect_UnreachableHost(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 1
	cfg.ConnectTimeout = 2 * time.Second
	c := New(cfg, nil)

	start := time.Now()
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 60*time.Second)
	assert.True(t, errs.IsRetryable(err))
	assert.NotEmpty(t, c.LastError())
	assert.False(t, c.InUse())
	assert.True(t, c.SetupPending())
}

func TestCopy(t *testing.T) {
	o := newMockOpener(t, 1)
	expectSession(o.mocks[0], true)
	ctr := database.NewCounters(nil).For(database.DriverMySQL)

	c := newConn(testConfig(), ctr, o.open)
	require.NoError(t, c.Connect(context.Background()))

	cp := c.Copy()
	assert.Equal(t, c.Config(), cp.Config())
	assert.False(t, cp.Connected())
	assert.False(t, cp.InUse())
	assert.Equal(t, int64(2), ctr.Live())

	c.Disconnect()
	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, cp.Close(context.Background()))
	assert.Equal(t, int64(0), ctr.Live())
}

func TestStatements_RequireConnect(t *testing.T) {
	c := newConn(testConfig(), nil, newMockOpener(t, 0).open)

	_, err := c.Exec(context.Background(), "INSERT INTO record_points VALUES (?, ?)", "a", 1)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = c.Query(context.Background(), "SELECT 1")
	assert.True(t, errs.IsInvalidInput(err))

	var n int
	assert.True(t, errs.IsInvalidInput(c.QueryRow(context.Background(), "SELECT 1").Scan(&n)))
}

func TestStatements_LostConnectionTearsDown(t *testing.T) {
	o := newMockOpener(t, 1)
	expectSession(o.mocks[0], false)
	o.mocks[0].ExpectExec("DELETE FROM record_saves").WillReturnError(driver.ErrBadConn)

	cfg := testConfig()
	cfg.Setup = false
	c := newConn(cfg, nil, o.open)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.Exec(context.Background(), "DELETE FROM record_saves")
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
	assert.False(t, c.Connected())
	assert.True(t, c.InUse())
	c.Disconnect()
	o.verify()
}

func TestQueryRow_NoRows(t *testing.T) {
	o := newMockOpener(t, 1)
	expectSession(o.mocks[0], false)
	o.mocks[0].ExpectQuery("SELECT points FROM record_points WHERE name = ?").
		WithArgs("nameless tee").
		WillReturnRows(sqlmock.NewRows([]string{"points"}))

	cfg := testConfig()
	cfg.Setup = false
	c := newConn(cfg, nil, o.open)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	var points int
	err := c.QueryRow(context.Background(), "SELECT points FROM record_points WHERE name = ?", "nameless tee").Scan(&points)
	assert.True(t, errs.IsNotFound(err))
}

func TestQuery_Rows(t *testing.T) {
	o := newMockOpener(t, 1)
	expectSession(o.mocks[0], false)
	o.mocks[0].ExpectQuery("SELECT name, time FROM record_race").
		WillReturnRows(sqlmock.NewRows([]string{"name", "time"}).
			AddRow("brainless tee", 12.5).
			AddRow("nameless tee", 13.0))

	cfg := testConfig()
	cfg.Setup = false
	c := newConn(cfg, nil, o.open)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	rows, err := c.Query(context.Background(), "SELECT name, time FROM record_race")
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "time"}, cols)

	var names []string
	for rows.Next() {
		var name string
		var tm float64
		require.NoError(t, rows.Scan(&name, &tm))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"brainless tee", "nameless tee"}, names)
}

func TestResume_PingsInsteadOfReconnecting(t *testing.T) {
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)
	o := &mockOpener{t: t, dbs: []*sql.DB{db}, mocks: []sqlmock.Sqlmock{mock}}

	cfg := testConfig()
	cfg.Setup = false
	c := newConn(cfg, nil, o.open)
	ctx := context.Background()

	expectSession(mock, false)
	mock.ExpectPing()
	mock.ExpectExec("DELETE FROM record_saves").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectPing().WillReturnError(errors.New("broken pipe"))

	assert.False(t, c.Resume(ctx))
	require.NoError(t, c.Connect(ctx))
	c.Disconnect()

	require.True(t, c.Resume(ctx))
	n, err := c.Exec(ctx, "DELETE FROM record_saves")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	c.Disconnect()

	assert.False(t, c.Resume(ctx))
	assert.False(t, c.Connected())
	assert.False(t, c.InUse())
	assert.Equal(t, 1, o.calls)
	o.verify()
}
