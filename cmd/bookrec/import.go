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

package main

import (
	"os"

	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/storage"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCommand = &cobra.Command{
	Use:   "import <ratings.csv>",
	Short: "Import ratings from a CSV file into the data store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		file, err := os.Open(args[0])
		if err != nil {
			return errors.Trace(err)
		}
		defer file.Close()
		records, err := storage.ReadCSV(ctx, file)
		if err != nil {
			return errors.Annotatef(err, "read %v", args[0])
		}
		source, err := storage.Open(conf.Database.DataStore, conf.Database.TablePrefix, conf.Database.StorageOptions()...)
		if err != nil {
			return errors.Trace(err)
		}
		defer source.Close()
		if err = source.Init(ctx); err != nil {
			return errors.Trace(err)
		}
		if err = source.BatchInsert(ctx, records); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("import ratings",
			zap.String("file", args[0]),
			zap.String("data_store", log.RedactDBURL(conf.Database.DataStore)),
			zap.Int("n_ratings", len(records)))
		return nil
	},
}

func init() {
	rootCommand.AddCommand(importCommand)
}
