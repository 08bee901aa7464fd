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
	"fmt"

	"github.com/gorse-io/bookrec/config"
	"github.com/gorse-io/bookrec/recommend"
	"github.com/gorse-io/bookrec/server"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend books from the saved snapshot.",
}

var recommendUserCommand = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Recommend books read by similar users.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, k, err := loadEngine(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		result, err := engine.RecommendByUser(args[0], k)
		if err != nil {
			return errors.Trace(err)
		}
		users := tablewriter.NewWriter(cmd.OutOrStdout())
		users.Header("Similar User", "Similarity")
		for _, user := range result.SimilarUsers {
			if err = users.Append([]string{user.UserId, fmt.Sprint(user.Similarity)}); err != nil {
				return errors.Trace(err)
			}
		}
		if err = users.Render(); err != nil {
			return errors.Trace(err)
		}
		books := tablewriter.NewWriter(cmd.OutOrStdout())
		books.Header("ISBN", "Title", "Author", "Score", "Similar User")
		for _, r := range result.Recommendations {
			if err = books.Append([]string{r.ItemId, r.Title, r.Author, fmt.Sprint(r.PredictedScore), r.NeighborId}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(books.Render())
	},
}

var recommendItemCommand = &cobra.Command{
	Use:   "item <isbn>",
	Short: "Recommend books similar to a book.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, k, err := loadEngine(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		result, err := engine.RecommendByItem(args[0], k)
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s by %s (%s)\n", result.SourceBook.Title, result.SourceBook.Author, result.SourceBook.ItemId)
		books := tablewriter.NewWriter(cmd.OutOrStdout())
		books.Header("ISBN", "Title", "Author", "Similarity", "Average Rating")
		for _, r := range result.Recommendations {
			if err = books.Append([]string{r.ItemId, r.Title, r.Author, fmt.Sprint(r.Similarity), fmt.Sprint(r.AverageRating)}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(books.Render())
	},
}

func init() {
	recommendCommand.PersistentFlags().IntP("k", "k", 0, "number of recommendations (recommend.default_k if zero)")
	recommendCommand.AddCommand(recommendUserCommand, recommendItemCommand)
	rootCommand.AddCommand(recommendCommand)
}

func loadEngine(cmd *cobra.Command) (*recommend.Engine, int, error) {
	conf, err := loadConfig(cmd)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	k, _ := cmd.Flags().GetInt("k")
	if k == 0 {
		k = conf.Recommend.DefaultK
	}
	engine, err := loadSavedEngine(cmd, conf)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	return engine, k, nil
}

func loadSavedEngine(cmd *cobra.Command, conf *config.Config) (*recommend.Engine, error) {
	blobStore, err := openBlob(conf)
	if err != nil {
		return nil, errors.Trace(err)
	}
	snapshot, _, err := server.LoadSnapshot(cmd.Context(), blobStore, conf.Blob.Name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	engine, err := recommend.NewEngine(snapshot, conf.Recommend.Options())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return engine, nil
}
