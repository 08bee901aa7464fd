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
	"os"

	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/cmd/version"
	"github.com/gorse-io/bookrec/config"
	"github.com/gorse-io/bookrec/dataset"
	"github.com/gorse-io/bookrec/storage"
	"github.com/gorse-io/bookrec/storage/blob"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:           "bookrec",
	Short:         "Neighborhood collaborative filtering for books.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print build information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
	},
}

func init() {
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.AddCommand(versionCommand)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}

// loadStore reads ratings from the data store.
func loadStore(ctx context.Context, conf *config.Config) (*dataset.Store, error) {
	source, err := storage.Open(conf.Database.DataStore, conf.Database.TablePrefix, conf.Database.StorageOptions()...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer source.Close()
	records, err := source.Load(ctx)
	if err != nil {
		return nil, errors.Annotatef(err, "load ratings from %v", log.RedactDBURL(conf.Database.DataStore))
	}
	if conf.Dataset.RescaleLowVariance {
		var rescaled bool
		if records, rescaled = dataset.RescaleLowVariance(records); rescaled {
			log.Logger().Info("rescale low variance ratings", zap.Int("n_ratings", len(records)))
		}
	}
	store, err := dataset.NewStore(records)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load ratings",
		zap.String("data_store", log.RedactDBURL(conf.Database.DataStore)),
		zap.Int("n_users", store.CountUsers()),
		zap.Int("n_items", store.CountItems()),
		zap.Int("n_ratings", store.Count()))
	return store, nil
}

func openBlob(conf *config.Config) (blob.Store, error) {
	store, err := blob.Open(conf.Blob)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return store, nil
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
