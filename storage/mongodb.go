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

	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource stores ratings in a MongoDB collection.
type MongoSource struct {
	client      *mongo.Client
	dbName      string
	tablePrefix TablePrefix
	batchSize   int
}

func (m *MongoSource) collection() *mongo.Collection {
	return m.client.Database(m.dbName).Collection(m.tablePrefix.RatingsTable())
}

func (m *MongoSource) Init(ctx context.Context) error {
	d := m.client.Database(m.dbName)
	// list collections
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	if !lo.Contains(collections, m.tablePrefix.RatingsTable()) {
		if err = d.CreateCollection(ctx, m.tablePrefix.RatingsTable()); err != nil {
			return errors.Trace(err)
		}
	}
	// create indices
	_, err = m.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "item_id", Value: 1}},
		},
	})
	return errors.Trace(err)
}

func (m *MongoSource) Load(ctx context.Context) ([]dataset.RatingRecord, error) {
	opt := options.Find().
		SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "item_id", Value: 1}}).
		SetBatchSize(int32(m.batchSize))
	cur, err := m.collection().Find(ctx, bson.M{}, opt)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer cur.Close(ctx)
	var records []dataset.RatingRecord
	for cur.Next(ctx) {
		var r dataset.RatingRecord
		if err = cur.Decode(&r); err != nil {
			return nil, errors.Trace(err)
		}
		records = append(records, r)
	}
	return records, errors.Trace(cur.Err())
}

func (m *MongoSource) BatchInsert(ctx context.Context, records []dataset.RatingRecord) error {
	for _, chunk := range lo.Chunk(records, m.batchSize) {
		var models []mongo.WriteModel
		for _, r := range chunk {
			models = append(models, mongo.NewReplaceOneModel().
				SetUpsert(true).
				SetFilter(bson.M{"user_id": r.UserId, "item_id": r.ItemId}).
				SetReplacement(r))
		}
		if _, err := m.collection().BulkWrite(ctx, models); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (m *MongoSource) Close() error {
	return errors.Trace(m.client.Disconnect(context.Background()))
}
