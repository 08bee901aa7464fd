// Copyright 2025 gorse Project Authors
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

package dataset

import (
	"math"

	"github.com/juju/errors"
)

const (
	// MinRating is the lowest explicit rating.
	MinRating = 1.0
	// MaxRating is the highest explicit rating.
	MaxRating = 10.0
)

// RatingRecord is one explicit rating with the metadata of the rated book.
type RatingRecord struct {
	UserId   string  `json:"user_id" gorm:"column:user_id;primaryKey" bson:"user_id"`
	ItemId   string  `json:"item_id" gorm:"column:item_id;primaryKey" bson:"item_id"`
	Rating   float64 `json:"rating" gorm:"column:rating" bson:"rating"`
	Title    string  `json:"title" gorm:"column:title" bson:"title"`
	Author   string  `json:"author" gorm:"column:author" bson:"author"`
	ImageURL string  `json:"image_url" gorm:"column:image_url" bson:"image_url"`
}

// Validate checks ids and the rating range.
func (r RatingRecord) Validate() error {
	if r.UserId == "" {
		return errors.NotValidf("empty user id")
	}
	if r.ItemId == "" {
		return errors.NotValidf("empty item id of user %v", r.UserId)
	}
	if math.IsNaN(r.Rating) || r.Rating < MinRating || r.Rating > MaxRating {
		return errors.NotValidf("rating %v of (%v, %v)", r.Rating, r.UserId, r.ItemId)
	}
	return nil
}

// Book is the metadata of an item.
type Book struct {
	ItemId   string `json:"isbn"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ImageURL string `json:"image_url"`
}

func (r RatingRecord) book() Book {
	return Book{
		ItemId:   r.ItemId,
		Title:    r.Title,
		Author:   r.Author,
		ImageURL: r.ImageURL,
	}
}
