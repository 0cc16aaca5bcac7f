package binding

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	nb "github.com/hhkbp2/nosqlbench"
)

const (
	PropertyMysqlDatabase           = "mysql.db"
	PropertyMysqlDatabaseDefault    = "db"
	PropertyMysqlTable              = "mysql.table"
	PropertyMysqlTableDefault       = "nosqlbench"
	PropertyMysqlUser               = "mysql.user"
	PropertyMysqlUserDefault        = "user"
	PropertyMysqlPassword           = "mysql.password"
	PropertyMysqlPasswordDefault    = "password"
	PropertyMysqlOptions            = "mysql.options"
	PropertyMysqlOptionsDefault     = "charset=utf8"
	PropertyMysqlPrimaryKey         = "mysql.primarykey"
	PropertyMysqlPrimaryKeyDefault  = "nb_key"
	PropertyMysqlValueField         = "mysql.valuefield"
	PropertyMysqlValueFieldDefault  = "nb_value"
	PropertyMysqlCreateTable        = "mysql.createtable"
	PropertyMysqlCreateTableDefault = "true"
)

// MysqlDB runs every request as a prepared statement against a two
// column table, one connection per worker.
type MysqlDB struct {
	table      string
	primaryKey string
	valueField string
	value      []byte
	db         *sql.DB
	ctx        context.Context

	insertStmt  *sql.Stmt
	replaceStmt *sql.Stmt
	updateStmt  *sql.Stmt
	deleteStmt  *sql.Stmt
	selectStmt  *sql.Stmt

	tracker nb.BatchTracker
}

func NewMysqlDB() *MysqlDB {
	return &MysqlDB{
		ctx: context.Background(),
	}
}

func (self *MysqlDB) Init(valueSize int) error {
	self.value = nb.FillValue(valueSize)
	return nil
}

func (self *MysqlDB) Connect(ctx context.Context, opts *nb.Options) error {
	props := opts.Properties
	database := props.GetDefault(PropertyMysqlDatabase, PropertyMysqlDatabaseDefault)
	user := props.GetDefault(PropertyMysqlUser, PropertyMysqlUserDefault)
	password := props.GetDefault(PropertyMysqlPassword, PropertyMysqlPasswordDefault)
	options := props.GetDefault(PropertyMysqlOptions, PropertyMysqlOptionsDefault)
	createTable, err := strconv.ParseBool(props.GetDefault(PropertyMysqlCreateTable, PropertyMysqlCreateTableDefault))
	if err != nil {
		return err
	}
	self.table = props.GetDefault(PropertyMysqlTable, PropertyMysqlTableDefault)
	self.primaryKey = props.GetDefault(PropertyMysqlPrimaryKey, PropertyMysqlPrimaryKeyDefault)
	self.valueField = props.GetDefault(PropertyMysqlValueField, PropertyMysqlValueFieldDefault)

	sourceName := fmt.Sprintf("%s:%s@tcp(%s)/%s?%s", user, password, opts.Address(), database, options)
	db, err := sql.Open("mysql", sourceName)
	if err != nil {
		return err
	}
	// a worker is a single client
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nb.NewErrorf("%w: %v", nb.ErrConnection, err)
	}
	if createTable {
		statement := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s VARBINARY(255) PRIMARY KEY, %s BLOB)",
			self.table, self.primaryKey, self.valueField)
		if _, err := db.ExecContext(ctx, statement); err != nil {
			db.Close()
			return err
		}
	}
	self.db = db
	return self.prepare(ctx)
}

func (self *MysqlDB) prepare(ctx context.Context) error {
	statements := []struct {
		stmt  **sql.Stmt
		query string
	}{
		{&self.insertStmt, fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES(?, ?) ON DUPLICATE KEY UPDATE %s = VALUES(%s)",
			self.table, self.primaryKey, self.valueField, self.valueField, self.valueField)},
		{&self.replaceStmt, fmt.Sprintf("REPLACE INTO %s (%s, %s) VALUES(?, ?)",
			self.table, self.primaryKey, self.valueField)},
		{&self.updateStmt, fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
			self.table, self.valueField, self.primaryKey)},
		{&self.deleteStmt, fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
			self.table, self.primaryKey)},
		{&self.selectStmt, fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			self.valueField, self.table, self.primaryKey)},
	}
	for _, s := range statements {
		stmt, err := self.db.PrepareContext(ctx, s.query)
		if err != nil {
			self.Close()
			return err
		}
		*s.stmt = stmt
	}
	return nil
}

func (self *MysqlDB) Close() error {
	for _, stmt := range []*sql.Stmt{self.insertStmt, self.replaceStmt, self.updateStmt, self.deleteStmt, self.selectStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if self.db != nil {
		err := self.db.Close()
		self.db = nil
		return err
	}
	return nil
}

func mysqlError(err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return nb.NewErrorf("%w: %v", nb.ErrConnection, err)
	}
	return connectionError(err)
}

func (self *MysqlDB) exec(stmt *sql.Stmt, args ...interface{}) error {
	start := time.Now()
	if _, err := stmt.ExecContext(self.ctx, args...); err != nil {
		return mysqlError(err)
	}
	self.tracker.Track(start, false)
	return nil
}

func (self *MysqlDB) Insert(key nb.Key) error {
	return self.exec(self.insertStmt, []byte(key), self.value)
}

func (self *MysqlDB) Replace(key nb.Key) error {
	return self.exec(self.replaceStmt, []byte(key), self.value)
}

func (self *MysqlDB) Update(key nb.Key) error {
	return self.exec(self.updateStmt, self.value, []byte(key))
}

func (self *MysqlDB) Delete(key nb.Key) error {
	return self.exec(self.deleteStmt, []byte(key))
}

func (self *MysqlDB) Select(key nb.Key) error {
	start := time.Now()
	var value []byte
	err := self.selectStmt.QueryRowContext(self.ctx, []byte(key)).Scan(&value)
	switch {
	case err == nil:
		self.tracker.Track(start, false)
	case errors.Is(err, sql.ErrNoRows):
		self.tracker.Track(start, true)
	default:
		return mysqlError(err)
	}
	return nil
}

func (self *MysqlDB) Recv(count int, latency nb.LatencyFunc) (int, error) {
	return self.tracker.Flush(latency), nil
}
