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
	"os/signal"
	"syscall"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/bookrec/base/log"
	"github.com/gorse-io/bookrec/recommend"
	"github.com/gorse-io/bookrec/server"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over REST.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		blobStore, err := openBlob(conf)
		if err != nil {
			return errors.Trace(err)
		}
		rest := server.NewRestServer(recommend.NewHolder(), conf)
		reloader := server.NewReloader(rest, blobStore, conf.Blob.Name, conf.Recommend.Options())

		// the listener starts only after a snapshot is served
		if trainFirst, _ := cmd.Flags().GetBool("train"); trainFirst {
			store, err := loadStore(ctx, conf)
			if err != nil {
				return errors.Trace(err)
			}
			snapshot, err := train(ctx, conf, store, false)
			if err != nil {
				return errors.Trace(err)
			}
			if err = server.SaveSnapshot(ctx, blobStore, conf.Blob.Name, snapshot); err != nil {
				return errors.Trace(err)
			}
			modified, err := blobStore.Stat(ctx, conf.Blob.Name)
			if err != nil {
				return errors.Trace(err)
			}
			if err = reloader.Publish(snapshot, modified); err != nil {
				return errors.Trace(err)
			}
		} else if _, err = backoff.Retry(ctx, func() (bool, error) {
			reloaded, err := reloader.Reload(ctx)
			if errors.Is(err, errors.NotFound) || errors.Is(err, errors.NotValid) {
				return false, backoff.Permanent(err)
			}
			return reloaded, err
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5)); err != nil {
			return errors.Annotatef(err, "load snapshot %v", conf.Blob.Name)
		}

		if conf.Server.ReloadPeriod > 0 {
			log.Logger().Info("reload snapshot periodically", zap.Duration("period", conf.Server.ReloadPeriod))
			go reloader.Run(ctx, conf.Server.ReloadPeriod)
		}
		if err = rest.Serve(ctx); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("stop bookrec successfully")
		return nil
	},
}

func init() {
	serveCommand.Flags().Bool("train", false, "train a snapshot before serving")
	rootCommand.AddCommand(serveCommand)
}
