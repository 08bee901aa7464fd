// Copyright 2020 gorse Project Authors
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

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorse-io/bookrec/base"
	"github.com/gorse-io/bookrec/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Serve starts the HTTP server and blocks until the context is done or the listener fails.
func (s *RestServer) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.cache != nil {
		go s.cache.Start()
		defer s.cache.Stop()
	}
	errs := make(chan error, 1)
	go func() {
		defer base.CheckPanic()
		log.Logger().Info("start http server", zap.String("url", "http://"+addr))
		errs <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return errors.Trace(err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("http server stopped")
		return nil
	}
}
