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

	"github.com/gorse-io/bookrec/dataset"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics of the rating data.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		store, err := loadStore(cmd.Context(), conf)
		if err != nil {
			return errors.Trace(err)
		}
		stats := dataset.Statistics(store)
		fmt.Fprintf(cmd.OutOrStdout(), "rows: %d, users: %d, books: %d\n", stats.Rows, stats.Users, stats.Items)

		summaries := tablewriter.NewWriter(cmd.OutOrStdout())
		summaries.Header("", "Count", "Mean", "Std", "Min", "25%", "50%", "75%", "Max")
		for _, row := range []struct {
			name    string
			summary dataset.Summary
		}{
			{"rating", stats.Ratings},
			{"ratings per user", stats.PerUser},
			{"ratings per book", stats.PerItem},
		} {
			s := row.summary
			if err = summaries.Append([]string{
				row.name,
				fmt.Sprint(s.Count),
				fmt.Sprintf("%.2f", s.Mean),
				fmt.Sprintf("%.2f", s.Std),
				fmt.Sprint(s.Min),
				fmt.Sprint(s.Q1),
				fmt.Sprint(s.Median),
				fmt.Sprint(s.Q3),
				fmt.Sprint(s.Max),
			}); err != nil {
				return errors.Trace(err)
			}
		}
		if err = summaries.Render(); err != nil {
			return errors.Trace(err)
		}

		distribution := tablewriter.NewWriter(cmd.OutOrStdout())
		distribution.Header("Rating", "Count")
		for _, rc := range stats.Distribution {
			if err = distribution.Append([]string{fmt.Sprint(rc.Rating), fmt.Sprint(rc.Count)}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(distribution.Render())
	},
}

func init() {
	rootCommand.AddCommand(statsCommand)
}
