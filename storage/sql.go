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

	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLRating is the row of the ratings table.
type SQLRating struct {
	UserId   string  `gorm:"column:user_id;type:varchar(256);not null;primaryKey"`
	ItemId   string  `gorm:"column:item_id;type:varchar(256);not null;primaryKey;index:item_id"`
	Rating   float64 `gorm:"column:rating;not null"`
	Title    string  `gorm:"column:title;type:text;not null"`
	Author   string  `gorm:"column:author;type:text;not null"`
	ImageURL string  `gorm:"column:image_url;type:text;not null"`
}

func newSQLRating(r dataset.RatingRecord) SQLRating {
	return SQLRating{
		UserId:   r.UserId,
		ItemId:   r.ItemId,
		Rating:   r.Rating,
		Title:    r.Title,
		Author:   r.Author,
		ImageURL: r.ImageURL,
	}
}

func (r SQLRating) record() dataset.RatingRecord {
	return dataset.RatingRecord{
		UserId:   r.UserId,
		ItemId:   r.ItemId,
		Rating:   r.Rating,
		Title:    r.Title,
		Author:   r.Author,
		ImageURL: r.ImageURL,
	}
}

// SQLSource stores ratings in MySQL, PostgreSQL or SQLite through gorm.
type SQLSource struct {
	driver      SQLDriver
	tablePrefix TablePrefix
	batchSize   int
	client      *sql.DB
	gormDB      *gorm.DB
}

func (s *SQLSource) Init(ctx context.Context) error {
	db := s.gormDB.WithContext(ctx).Table(s.tablePrefix.RatingsTable())
	if s.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	return errors.Trace(db.AutoMigrate(&SQLRating{}))
}

func (s *SQLSource) Load(ctx context.Context) ([]dataset.RatingRecord, error) {
	db := s.gormDB.WithContext(ctx)
	rows, err := db.Table(s.tablePrefix.RatingsTable()).Order("user_id, item_id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var records []dataset.RatingRecord
	for rows.Next() {
		var row SQLRating
		if err = db.ScanRows(rows, &row); err != nil {
			return nil, errors.Trace(err)
		}
		records = append(records, row.record())
	}
	return records, errors.Trace(rows.Err())
}

func (s *SQLSource) BatchInsert(ctx context.Context, records []dataset.RatingRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]SQLRating, len(records))
	for i, r := range records {
		rows[i] = newSQLRating(r)
	}
	err := s.gormDB.WithContext(ctx).Table(s.tablePrefix.RatingsTable()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(rows, s.batchSize).Error
	return errors.Trace(err)
}

func (s *SQLSource) Close() error {
	return errors.Trace(s.client.Close())
}
