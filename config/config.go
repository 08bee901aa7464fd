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

package config

import (
	"runtime"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/bookrec/model/knn"
	"github.com/gorse-io/bookrec/recommend"
	"github.com/gorse-io/bookrec/storage"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of bookrec.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Model     ModelConfig     `mapstructure:"model"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Train     TrainConfig     `mapstructure:"train"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Server    ServerConfig    `mapstructure:"server"`
}

type DatabaseConfig struct {
	DataStore       string        `mapstructure:"data_store" validate:"required"`
	TablePrefix     string        `mapstructure:"table_prefix"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// StorageOptions converts pool settings to data source options.
func (c *DatabaseConfig) StorageOptions() []storage.Option {
	return []storage.Option{
		storage.WithMaxOpenConns(c.MaxOpenConns),
		storage.WithMaxIdleConns(c.MaxIdleConns),
		storage.WithConnMaxLifetime(c.ConnMaxLifetime),
	}
}

type DatasetConfig struct {
	RescaleLowVariance bool `mapstructure:"rescale_low_variance"`
}

type ModelConfig struct {
	K          int            `mapstructure:"k" validate:"gte=1"`
	MinK       int            `mapstructure:"min_k" validate:"gte=0"`
	MinSupport int            `mapstructure:"min_support" validate:"gte=0"`
	Shrinkage  float64        `mapstructure:"shrinkage" validate:"gte=0"`
	Baseline   BaselineConfig `mapstructure:"baseline"`
}

type BaselineConfig struct {
	Method  string  `mapstructure:"method" validate:"oneof=als sgd"`
	NEpochs int     `mapstructure:"n_epochs" validate:"gte=0"`
	RegUser float64 `mapstructure:"reg_user" validate:"gte=0"`
	RegItem float64 `mapstructure:"reg_item" validate:"gte=0"`
	Lr      float64 `mapstructure:"lr" validate:"gte=0"`
	Reg     float64 `mapstructure:"reg" validate:"gte=0"`
}

// Params converts the model section to hyper-parameters of neighbor models.
func (c *ModelConfig) Params() knn.Params {
	return knn.Params{
		K:          c.K,
		MinK:       c.MinK,
		MinSupport: c.MinSupport,
		Shrinkage:  c.Shrinkage,
		Baseline: knn.BaselineParams{
			Method:  c.Baseline.Method,
			NEpochs: c.Baseline.NEpochs,
			RegUser: c.Baseline.RegUser,
			RegItem: c.Baseline.RegItem,
			Lr:      c.Baseline.Lr,
			Reg:     c.Baseline.Reg,
		},
	}
}

type RecommendConfig struct {
	NeighborFanout int           `mapstructure:"neighbor_fanout" validate:"gte=1"`
	Aggregation    string        `mapstructure:"aggregation" validate:"oneof=none weighted"`
	Filter         string        `mapstructure:"filter"`
	DefaultK       int           `mapstructure:"default_k" validate:"gte=1"`
	SearchLimit    int           `mapstructure:"search_limit" validate:"gte=1"`
	CacheSize      uint64        `mapstructure:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// Options converts the recommend section to engine options.
func (c *RecommendConfig) Options() recommend.Options {
	return recommend.Options{
		NeighborFanout: c.NeighborFanout,
		Aggregation:    c.Aggregation,
		Filter:         c.Filter,
	}
}

type TrainConfig struct {
	Jobs        int     `mapstructure:"jobs" validate:"gte=1"`
	TestSize    float64 `mapstructure:"test_size" validate:"gte=0,lt=1"`
	RandomState int64   `mapstructure:"random_state"`
}

type BlobConfig struct {
	URI   string          `mapstructure:"uri" validate:"required"`
	Name  string          `mapstructure:"name" validate:"required"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	ReloadPeriod time.Duration `mapstructure:"reload_period" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	params := knn.DefaultParams()
	options := recommend.DefaultOptions()
	return &Config{
		Database: DatabaseConfig{
			DataStore: "book_ratings.csv",
		},
		Model: ModelConfig{
			K:          params.K,
			MinK:       params.MinK,
			MinSupport: params.MinSupport,
			Shrinkage:  params.Shrinkage,
			Baseline: BaselineConfig{
				Method:  params.Baseline.Method,
				NEpochs: params.Baseline.NEpochs,
				RegUser: params.Baseline.RegUser,
				RegItem: params.Baseline.RegItem,
				Lr:      0.005,
				Reg:     0.02,
			},
		},
		Recommend: RecommendConfig{
			NeighborFanout: options.NeighborFanout,
			Aggregation:    options.Aggregation,
			DefaultK:       5,
			SearchLimit:    10,
			CacheSize:      1000,
			CacheTTL:       10 * time.Minute,
		},
		Train: TrainConfig{
			Jobs:        runtime.NumCPU(),
			TestSize:    0.2,
			RandomState: 42,
		},
		Blob: BlobConfig{
			URI:  "models",
			Name: "bookrec.model",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	v.SetDefault("database.max_open_conns", defaultConfig.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultConfig.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", defaultConfig.Database.ConnMaxLifetime)
	// [dataset]
	v.SetDefault("dataset.rescale_low_variance", defaultConfig.Dataset.RescaleLowVariance)
	// [model]
	v.SetDefault("model.k", defaultConfig.Model.K)
	v.SetDefault("model.min_k", defaultConfig.Model.MinK)
	v.SetDefault("model.min_support", defaultConfig.Model.MinSupport)
	v.SetDefault("model.shrinkage", defaultConfig.Model.Shrinkage)
	// [model.baseline]
	v.SetDefault("model.baseline.method", defaultConfig.Model.Baseline.Method)
	v.SetDefault("model.baseline.n_epochs", defaultConfig.Model.Baseline.NEpochs)
	v.SetDefault("model.baseline.reg_user", defaultConfig.Model.Baseline.RegUser)
	v.SetDefault("model.baseline.reg_item", defaultConfig.Model.Baseline.RegItem)
	v.SetDefault("model.baseline.lr", defaultConfig.Model.Baseline.Lr)
	v.SetDefault("model.baseline.reg", defaultConfig.Model.Baseline.Reg)
	// [recommend]
	v.SetDefault("recommend.neighbor_fanout", defaultConfig.Recommend.NeighborFanout)
	v.SetDefault("recommend.aggregation", defaultConfig.Recommend.Aggregation)
	v.SetDefault("recommend.filter", defaultConfig.Recommend.Filter)
	v.SetDefault("recommend.default_k", defaultConfig.Recommend.DefaultK)
	v.SetDefault("recommend.search_limit", defaultConfig.Recommend.SearchLimit)
	v.SetDefault("recommend.cache_size", defaultConfig.Recommend.CacheSize)
	v.SetDefault("recommend.cache_ttl", defaultConfig.Recommend.CacheTTL)
	// [train]
	v.SetDefault("train.jobs", defaultConfig.Train.Jobs)
	v.SetDefault("train.test_size", defaultConfig.Train.TestSize)
	v.SetDefault("train.random_state", defaultConfig.Train.RandomState)
	// [blob]
	v.SetDefault("blob.uri", defaultConfig.Blob.URI)
	v.SetDefault("blob.name", defaultConfig.Blob.Name)
	v.SetDefault("blob.s3.use_ssl", defaultConfig.Blob.S3.UseSSL)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.reload_period", defaultConfig.Server.ReloadPeriod)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"database.data_store", "BOOKREC_DATA_STORE"},
	{"database.table_prefix", "BOOKREC_TABLE_PREFIX"},
	{"train.jobs", "BOOKREC_TRAIN_JOBS"},
	{"blob.uri", "BOOKREC_BLOB_URI"},
	{"blob.s3.endpoint", "BOOKREC_S3_ENDPOINT"},
	{"blob.s3.access_key_id", "BOOKREC_S3_ACCESS_KEY_ID"},
	{"blob.s3.secret_access_key", "BOOKREC_S3_SECRET_ACCESS_KEY"},
	{"blob.gcs.credentials_file", "BOOKREC_GCS_CREDENTIALS_FILE"},
	{"blob.azure.connection_string", "BOOKREC_AZURE_CONNECTION_STRING"},
	{"blob.azure.account_name", "BOOKREC_AZURE_ACCOUNT_NAME"},
	{"blob.azure.account_key", "BOOKREC_AZURE_ACCOUNT_KEY"},
	{"server.host", "BOOKREC_SERVER_HOST"},
	{"server.port", "BOOKREC_SERVER_PORT"},
}

// LoadConfig reads a TOML configuration file. Missing keys take default values and
// BOOKREC_* environment variables override the file. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %v", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
