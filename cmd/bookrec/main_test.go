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
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/bookrec/base/log"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	defer resetFlags(rootCommand)
	buf := new(bytes.Buffer)
	rootCommand.SetOut(buf)
	rootCommand.SetArgs(args)
	err := rootCommand.Execute()
	log.CloseLogger()
	return buf.String(), err
}

func writeRatings(t *testing.T, path string) int {
	rng := rand.New(rand.NewSource(0))
	lines := []string{"User-ID,ISBN,Book-Rating,Book-Title,Book-Author,Image-URL-M"}
	for u := 0; u < 20; u++ {
		for i := 0; i < 30; i++ {
			if rng.Float64() < 0.4 {
				lines = append(lines, fmt.Sprintf("%d,%010d,%d,Book %d,Author %d,http://images/%d.jpg",
					1000+u, i, 1+rng.Intn(10), i, i%4, i))
			}
		}
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return len(lines) - 1
}

func writeConfig(t *testing.T, dir, dataStore string) string {
	path := filepath.Join(dir, "config.toml")
	text := fmt.Sprintf(`[database]
data_store = %q

[model]
min_support = 2
shrinkage = 10.0

[train]
jobs = 2

[blob]
uri = %q
`, dataStore, filepath.Join(dir, "models"))
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	ratingsPath := filepath.Join(dir, "ratings.csv")
	numRatings := writeRatings(t, ratingsPath)
	configPath := writeConfig(t, dir, ratingsPath)

	// stats
	output, err := execute(t, "stats", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, output, fmt.Sprintf("rows: %d, users: 20", numRatings))

	// train
	output, err = execute(t, "train", "-c", configPath, "--eval", "--export-books")
	require.NoError(t, err)
	assert.Contains(t, output, "user-based")
	assert.Contains(t, output, "item-based")
	assert.FileExists(t, filepath.Join(dir, "models", "bookrec.model"))
	assert.FileExists(t, filepath.Join(dir, "models", bookInfoName))

	// recommend
	output, err = execute(t, "recommend", "user", "1000", "-c", configPath, "-k", "3")
	require.NoError(t, err)
	assert.NotEmpty(t, output)
	output, err = execute(t, "recommend", "item", "0000000000", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Book 0 by Author 0")
	_, err = execute(t, "recommend", "user", "unknown", "-c", configPath)
	assert.True(t, errors.Is(err, errors.NotFound))

	// version
	output, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "Version:")
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	ratingsPath := filepath.Join(dir, "ratings.csv")
	numRatings := writeRatings(t, ratingsPath)
	configPath := writeConfig(t, dir, "sqlite://"+filepath.Join(dir, "bookrec.db"))

	_, err := execute(t, "import", ratingsPath, "-c", configPath)
	require.NoError(t, err)
	output, err := execute(t, "stats", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, output, fmt.Sprintf("rows: %d, users: 20", numRatings))
}

func TestRecommendWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	ratingsPath := filepath.Join(dir, "ratings.csv")
	writeRatings(t, ratingsPath)
	configPath := writeConfig(t, dir, ratingsPath)
	_, err := execute(t, "recommend", "user", "1000", "-c", configPath)
	assert.True(t, errors.Is(err, errors.NotFound))
}
