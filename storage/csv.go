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
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	columnUserId = iota
	columnItemId
	columnRating
	columnTitle
	columnAuthor
	columnImageURL
	numColumns
)

// csvHeader is written by CSVSource. Readers also accept the column names of the
// Book-Crossing export.
var csvHeader = []string{"user_id", "item_id", "rating", "title", "author", "image_url"}

var csvAliases = map[string]int{
	"user_id":     columnUserId,
	"user-id":     columnUserId,
	"item_id":     columnItemId,
	"isbn":        columnItemId,
	"rating":      columnRating,
	"book-rating": columnRating,
	"title":       columnTitle,
	"book-title":  columnTitle,
	"author":      columnAuthor,
	"book-author": columnAuthor,
	"image_url":   columnImageURL,
	"image-url-m": columnImageURL,
}

// CSVSource stores ratings in a CSV file with a header line.
type CSVSource struct {
	path string
}

func (c *CSVSource) Init(_ context.Context) error {
	if _, err := os.Stat(c.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	return errors.Trace(c.write(nil))
}

func (c *CSVSource) Load(ctx context.Context) ([]dataset.RatingRecord, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return ReadCSV(ctx, f)
}

// ReadCSV parses ratings from a CSV stream with a header line.
func ReadCSV(ctx context.Context, r io.Reader) ([]dataset.RatingRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	// map columns
	positions := lo.Times(numColumns, func(_ int) int { return -1 })
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if column, exist := csvAliases[name]; exist {
			positions[column] = i
		}
	}
	for _, column := range []int{columnUserId, columnItemId, columnRating} {
		if positions[column] < 0 {
			return nil, errors.NotValidf("csv header %v", header)
		}
	}
	field := func(fields []string, column int) string {
		if positions[column] < 0 || positions[column] >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[positions[column]])
	}
	var records []dataset.RatingRecord
	for lineNumber := 2; ; lineNumber++ {
		if err = ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		fields, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		rating, err := strconv.ParseFloat(field(fields, columnRating), 64)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNumber)
		}
		records = append(records, dataset.RatingRecord{
			UserId:   field(fields, columnUserId),
			ItemId:   field(fields, columnItemId),
			Rating:   rating,
			Title:    field(fields, columnTitle),
			Author:   field(fields, columnAuthor),
			ImageURL: field(fields, columnImageURL),
		})
	}
	return records, nil
}

// BatchInsert rewrites the file with the records merged in.
func (c *CSVSource) BatchInsert(ctx context.Context, records []dataset.RatingRecord) error {
	existed, err := c.Load(ctx)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Trace(err)
	}
	positions := make(map[lo.Tuple2[string, string]]int, len(existed))
	for i, r := range existed {
		positions[lo.T2(r.UserId, r.ItemId)] = i
	}
	for _, r := range records {
		key := lo.T2(r.UserId, r.ItemId)
		if i, exist := positions[key]; exist {
			existed[i] = r
		} else {
			positions[key] = len(existed)
			existed = append(existed, r)
		}
	}
	return errors.Trace(c.write(existed))
}

func (c *CSVSource) write(records []dataset.RatingRecord) error {
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return errors.Trace(err)
		}
	}
	f, err := os.Create(c.path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err = w.Write(csvHeader); err != nil {
		return errors.Trace(err)
	}
	for _, r := range records {
		if err = w.Write([]string{
			r.UserId,
			r.ItemId,
			strconv.FormatFloat(r.Rating, 'f', -1, 64),
			r.Title,
			r.Author,
			r.ImageURL,
		}); err != nil {
			return errors.Trace(err)
		}
	}
	w.Flush()
	return errors.Trace(w.Error())
}

func (c *CSVSource) Close() error {
	return nil
}

// ExportBooks writes book metadata in the Book-Crossing column layout.
func ExportBooks(w io.Writer, books []dataset.Book) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"ISBN", "Book-Title", "Book-Author", "Image-URL-M"}); err != nil {
		return errors.Trace(err)
	}
	for _, book := range books {
		if err := writer.Write([]string{book.ItemId, book.Title, book.Author, book.ImageURL}); err != nil {
			return errors.Trace(err)
		}
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}
