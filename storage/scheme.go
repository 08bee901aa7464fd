// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
	mysqlDriver "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	_ "modernc.org/sqlite"
)

const (
	MySQLPrefix      = "mysql://"
	MongoPrefix      = "mongodb://"
	MongoSrvPrefix   = "mongodb+srv://"
	PostgresPrefix   = "postgres://"
	PostgreSQLPrefix = "postgresql://"
	SQLitePrefix     = "sqlite://"
	CSVPrefix        = "csv://"
)

// Source is a table of ratings.
type Source interface {
	// Init creates the table if it does not exist.
	Init(ctx context.Context) error
	// Load reads every rating in a stable order.
	Load(ctx context.Context) ([]dataset.RatingRecord, error)
	// BatchInsert inserts ratings, overwriting existing (user, item) pairs.
	BatchInsert(ctx context.Context, records []dataset.RatingRecord) error
	Close() error
}

// Open a rating source. The scheme of path selects the backend; a path ending with .csv
// is read as a CSV file.
func Open(path, tablePrefix string, opts ...Option) (Source, error) {
	opt := NewOptions(opts...)
	var err error
	if strings.HasPrefix(path, MySQLPrefix) {
		name := path[len(MySQLPrefix):]
		if name, err = AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		source := &SQLSource{driver: MySQL, tablePrefix: TablePrefix(tablePrefix), batchSize: opt.BatchSize}
		if source.client, err = sql.Open("mysql", name); err != nil {
			return nil, errors.Trace(err)
		}
		ApplySQLPool(source.client, opt)
		source.gormDB, err = gorm.Open(mysqlDriver.New(mysqlDriver.Config{Conn: source.client}), NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if strings.HasPrefix(path, PostgresPrefix) || strings.HasPrefix(path, PostgreSQLPrefix) {
		source := &SQLSource{driver: Postgres, tablePrefix: TablePrefix(tablePrefix), batchSize: opt.BatchSize}
		if source.client, err = sql.Open("postgres", path); err != nil {
			return nil, errors.Trace(err)
		}
		ApplySQLPool(source.client, opt)
		source.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: source.client}), NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if strings.HasPrefix(path, SQLitePrefix) {
		if path, err = AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(SQLitePrefix):]
		source := &SQLSource{driver: SQLite, tablePrefix: TablePrefix(tablePrefix), batchSize: opt.BatchSize}
		if source.client, err = sql.Open("sqlite", name); err != nil {
			return nil, errors.Trace(err)
		}
		ApplySQLPool(source.client, opt)
		source.gormDB, err = gorm.Open(sqlite.Dialector{Conn: source.client}, NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if strings.HasPrefix(path, MongoPrefix) || strings.HasPrefix(path, MongoSrvPrefix) {
		source := &MongoSource{tablePrefix: TablePrefix(tablePrefix), batchSize: opt.BatchSize}
		if source.client, err = mongo.Connect(context.Background(), options.Client().ApplyURI(path)); err != nil {
			return nil, errors.Trace(err)
		}
		cs, err := connstring.ParseAndValidate(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		source.dbName = cs.Database
		return source, nil
	} else if strings.HasPrefix(path, CSVPrefix) {
		return &CSVSource{path: path[len(CSVPrefix):]}, nil
	} else if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return &CSVSource{path: path}, nil
	}
	return nil, errors.NotSupportedf("data store %s", log.RedactDBURL(path))
}

func AppendURLParams(rawURL string, params []lo.Tuple2[string, string]) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Trace(err)
	}
	q := parsed.Query()
	for _, tuple := range params {
		q.Add(tuple.A, tuple.B)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func AppendMySQLParams(dsn string, params map[string]string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Trace(err)
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	for key, value := range params {
		if _, exist := cfg.Params[key]; !exist {
			cfg.Params[key] = value
		}
	}
	return cfg.FormatDSN(), nil
}

type TablePrefix string

func (tp TablePrefix) RatingsTable() string {
	return string(tp) + "ratings"
}

func NewGORMConfig(tablePrefix string) *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Logger()), logger.Config{
			SlowThreshold:             10 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		CreateBatchSize:        1000,
		SkipDefaultTransaction: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   tablePrefix,
			SingularTable: true,
			NameReplacer:  strings.NewReplacer("SQLRating", "Ratings"),
		},
	}
}
