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
	"context"
	"fmt"

	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/config"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/model/knn"
	"github.com/gorse-io/bookrec/recommend"
	"github.com/gorse-io/bookrec/server"
	"github.com/gorse-io/bookrec/storage"
	"github.com/gorse-io/bookrec/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const bookInfoName = "book_info.csv"

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Fit neighbor models and save the snapshot to the blob store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		store, err := loadStore(ctx, conf)
		if err != nil {
			return errors.Trace(err)
		}
		if eval, _ := cmd.Flags().GetBool("eval"); eval {
			if err = evaluate(cmd, conf, store); err != nil {
				return errors.Trace(err)
			}
		}
		progress, _ := cmd.Flags().GetBool("progress")
		snapshot, err := train(ctx, conf, store, progress)
		if err != nil {
			return errors.Trace(err)
		}
		blobStore, err := openBlob(conf)
		if err != nil {
			return errors.Trace(err)
		}
		if err = server.SaveSnapshot(ctx, blobStore, conf.Blob.Name, snapshot); err != nil {
			return errors.Trace(err)
		}
		if exportBooks, _ := cmd.Flags().GetBool("export-books"); exportBooks {
			if err = exportBookInfo(ctx, blobStore, store); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	},
}

func init() {
	trainCommand.Flags().Bool("eval", false, "report RMSE and MAE on a held out split before training")
	trainCommand.Flags().Bool("export-books", false, "write "+bookInfoName+" next to the snapshot")
	trainCommand.Flags().Bool("progress", false, "show a progress bar")
	rootCommand.AddCommand(trainCommand)
}

func fitConfig(conf *config.Config, total int, progress bool) *knn.FitConfig {
	cfg := knn.NewFitConfig().SetJobs(conf.Train.Jobs)
	if progress {
		cfg.SetProgress(progressbar.Default(int64(total), "fit similarity"))
	}
	return cfg
}

func train(ctx context.Context, conf *config.Config, store *dataset.Store, progress bool) (*recommend.Snapshot, error) {
	params := conf.Model.Params()
	if err := params.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	snapshot, err := recommend.Train(ctx, store, params,
		fitConfig(conf, store.CountUsers()+store.CountItems(), progress))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return snapshot, nil
}

// evaluate fits both models on a split and prints accuracy on the held out ratings.
func evaluate(cmd *cobra.Command, conf *config.Config, store *dataset.Store) error {
	trainStore, test, err := dataset.Split(store, conf.Train.TestSize, conf.Train.RandomState)
	if err != nil {
		return errors.Trace(err)
	}
	trainset, err := dataset.NewTrainset(trainStore)
	if err != nil {
		return errors.Trace(err)
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Model", "RMSE", "MAE", "Impossible", "Test")
	for _, axis := range []knn.Axis{knn.UserAxis, knn.ItemAxis} {
		m := knn.NewNeighborModel(axis, conf.Model.Params())
		if err = m.Fit(cmd.Context(), trainset, fitConfig(conf, 0, false)); err != nil {
			return errors.Trace(err)
		}
		score, err := knn.Evaluate(cmd.Context(), m, test, fitConfig(conf, 0, false))
		if err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("evaluate neighbor model",
			zap.String("axis", axis.String()),
			zap.Float64("rmse", score.RMSE),
			zap.Float64("mae", score.MAE),
			zap.Int("impossible", score.Impossible))
		if err = table.Append([]string{
			axis.String() + "-based",
			fmt.Sprintf("%.4f", score.RMSE),
			fmt.Sprintf("%.4f", score.MAE),
			fmt.Sprint(score.Impossible),
			fmt.Sprint(len(test)),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func exportBookInfo(ctx context.Context, blobStore blob.Store, store *dataset.Store) error {
	books := make([]dataset.Book, 0, store.CountItems())
	for _, itemId := range store.AllItemIds() {
		book, err := store.Book(itemId)
		if err != nil {
			return errors.Trace(err)
		}
		books = append(books, book)
	}
	w, err := blobStore.Create(ctx, bookInfoName)
	if err != nil {
		return errors.Trace(err)
	}
	if err = storage.ExportBooks(w, books); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("export books", zap.String("name", bookInfoName), zap.Int("n_books", len(books)))
	return nil
}
