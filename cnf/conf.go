// Copyright 2025 The refml Authors
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

package cnf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"
)

const (
	DefaultConfigFile = "config.ini"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"

	CacheBackendFS     = "fs"
	CacheBackendBadger = "badger"
	CacheBackendS3     = "s3"

	dfltCacheDir   = "_cache"
	dfltBadgerPath = "_cache/badger"
	dfltModelDir   = "models"
	dfltNumTrees   = 100
	dfltSeed       = 42
	dfltNumFolds   = 10
	dfltReportPath = "results.txt"
	dfltModelType  = "rf"

	envDBPassword = "REFML_DB_PWD"
)

var ErrMissingDBConf = errors.New("missing database configuration")

// DBConf contains connection parameters of the database
// with features extracted from mined repositories.
type DBConf struct {
	Driver   string `json:"driver" toml:"driver" ini:"driver"`
	IP       string `json:"ip" toml:"ip" ini:"ip"`
	User     string `json:"user" toml:"user" ini:"user"`
	Pwd      string `json:"pwd" toml:"pwd" ini:"pwd"`
	Database string `json:"database" toml:"database" ini:"database"`
}

type CacheConf struct {
	Backend    string `json:"backend" toml:"backend" ini:"backend"`
	Dir        string `json:"dir" toml:"dir" ini:"dir"`
	BadgerPath string `json:"badgerPath" toml:"badger_path" ini:"badger_path"`
	S3Bucket   string `json:"s3Bucket" toml:"s3_bucket" ini:"s3_bucket"`
	S3Prefix   string `json:"s3Prefix" toml:"s3_prefix" ini:"s3_prefix"`
	S3Region   string `json:"s3Region" toml:"s3_region" ini:"s3_region"`
	S3Profile  string `json:"s3Profile" toml:"s3_profile" ini:"s3_profile"`
}

type TrainingConf struct {

	// Model is the classifier type: "rf" (default), "majority"
	// or "constant" (the latter two serve as baselines)
	Model    string `json:"model" toml:"model" ini:"model"`
	ModelDir string `json:"modelDir" toml:"model_dir" ini:"model_dir"`
	NumTrees int    `json:"numTrees" toml:"num_trees" ini:"num_trees"`
	Seed     uint64 `json:"seed" toml:"seed" ini:"seed"`
	NumFolds int    `json:"numFolds" toml:"num_folds" ini:"num_folds"`

	// NumJobs limits parallel work during training and evaluation.
	// Zero or a negative value means all available CPUs.
	NumJobs int `json:"numJobs" toml:"num_jobs" ini:"num_jobs"`

	// Level is the instance level as stored by the data collector
	// (e.g. 1 = class level, 2 = method level).
	Level        int      `json:"level" toml:"level" ini:"level"`
	Refactorings []string `json:"refactorings" toml:"refactorings" ini:"refactorings"`
	Features     []string `json:"features" toml:"features" ini:"features"`

	ReportPath    string `json:"reportPath" toml:"report_path" ini:"report_path"`
	ResultsDBPath string `json:"resultsDbPath" toml:"results_db_path" ini:"results_db_path"`
}

type Conf struct {
	srcPath string

	// defined contains "section.key" items explicitly present
	// in the source file (an empty value is still a value)
	defined map[string]bool

	Logging  logging.LoggingConf `json:"logging" toml:"logging"`
	DB       DBConf              `json:"db" toml:"db"`
	Cache    CacheConf           `json:"cache" toml:"cache"`
	Training TrainingConf        `json:"training" toml:"training"`
}

func (conf *Conf) SrcPath() string {
	return conf.srcPath
}

func (conf *Conf) markDefined(section, key string) {
	if conf.defined == nil {
		conf.defined = make(map[string]bool)
	}
	conf.defined[strings.ToLower(section)+"."+strings.ToLower(key)] = true
}

// isSet tells whether a value is either non-empty or
// explicitly specified by the configuration file.
func (conf *Conf) isSet(section, key, value string) bool {
	return value != "" || conf.defined[section+"."+key]
}

func (conf *Conf) markJSONKeys(rawData []byte) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(rawData, &sections); err != nil {
		return
	}
	for name, rawSection := range sections {
		var items map[string]json.RawMessage
		if err := json.Unmarshal(rawSection, &items); err != nil {
			continue
		}
		for key := range items {
			conf.markDefined(name, key)
		}
	}
}

func loadINI(path string, conf *Conf) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}
	// logging.LoggingConf has no ini tags so its keys are
	// derived from field names (Level -> level)
	cfg.NameMapper = ini.TitleUnderscore
	sections := []struct {
		name   string
		target any
	}{
		{"logging", &conf.Logging},
		{"db", &conf.DB},
		{"cache", &conf.Cache},
		{"training", &conf.Training},
	}
	for _, s := range sections {
		if !cfg.HasSection(s.name) {
			continue
		}
		sect := cfg.Section(s.name)
		if err := sect.MapTo(s.target); err != nil {
			return fmt.Errorf("invalid section [%s]: %w", s.name, err)
		}
		for _, key := range sect.KeyStrings() {
			conf.markDefined(s.name, key)
		}
	}
	return nil
}

// ReadConfig reads a configuration file. The format is determined
// by the file suffix (.ini, .toml, anything else is JSON).
func ReadConfig(path string) (*Conf, error) {
	if path == "" {
		return nil, fmt.Errorf("cannot load config - path not specified")
	}
	conf := Conf{srcPath: path, Training: TrainingConf{Seed: dfltSeed}}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini":
		if err := loadINI(path, &conf); err != nil {
			return nil, fmt.Errorf("cannot load config: %w", err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, &conf)
		if err != nil {
			return nil, fmt.Errorf("cannot load config: %w", err)
		}
		for _, key := range meta.Keys() {
			if len(key) == 2 {
				conf.markDefined(key[0], key[1])
			}
		}
	default:
		rawData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot load config: %w", err)
		}
		if err := json.Unmarshal(rawData, &conf); err != nil {
			return nil, fmt.Errorf("cannot load config: %w", err)
		}
		conf.markJSONKeys(rawData)
	}
	return &conf, nil
}

func LoadConfig(path string) *Conf {
	conf, err := ReadConfig(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Cannot load config")
	}
	return conf
}

// ValidateAndDefaults fills in missing optional values. Database
// connection parameters have no defaults - a key absent from the config
// produces an error wrapping ErrMissingDBConf. A key present with an empty
// value (e.g. an account without password) is accepted.
func ValidateAndDefaults(conf *Conf) error {
	if pwd := os.Getenv(envDBPassword); pwd != "" {
		conf.DB.Pwd = pwd
		conf.markDefined("db", "pwd")
		log.Debug().Str("variable", envDBPassword).Msg("using database password from environment")
	}
	if conf.DB.Driver == "" {
		conf.DB.Driver = DriverMySQL
	}
	var missing []string
	switch conf.DB.Driver {
	case DriverMySQL:
		if !conf.isSet("db", "ip", conf.DB.IP) {
			missing = append(missing, "ip")
		}
		if !conf.isSet("db", "user", conf.DB.User) {
			missing = append(missing, "user")
		}
		if !conf.isSet("db", "pwd", conf.DB.Pwd) {
			missing = append(missing, "pwd")
		}
		if !conf.isSet("db", "database", conf.DB.Database) {
			missing = append(missing, "database")
		}
	case DriverSQLite:
		if conf.DB.Database == "" {
			missing = append(missing, "database")
		}
	default:
		return fmt.Errorf("unsupported database driver %s", conf.DB.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: db.%s", ErrMissingDBConf, strings.Join(missing, ", db."))
	}

	switch conf.Cache.Backend {
	case "":
		conf.Cache.Backend = CacheBackendFS
	case CacheBackendFS, CacheBackendBadger:
	case CacheBackendS3:
		if conf.Cache.S3Bucket == "" {
			return fmt.Errorf("cache backend %s requires s3Bucket", CacheBackendS3)
		}
	default:
		return fmt.Errorf("unsupported cache backend %s", conf.Cache.Backend)
	}
	if conf.Cache.Dir == "" {
		conf.Cache.Dir = dfltCacheDir
	}
	if conf.Cache.BadgerPath == "" {
		conf.Cache.BadgerPath = dfltBadgerPath
	}

	if conf.Training.ModelDir == "" {
		conf.Training.ModelDir = dfltModelDir
		log.Warn().
			Str("modelDir", dfltModelDir).
			Msg("modelDir not specified, using default")
	}
	if conf.Training.Model == "" {
		conf.Training.Model = dfltModelType
	}
	if conf.Training.NumTrees <= 0 {
		conf.Training.NumTrees = dfltNumTrees
	}
	// ReadConfig pre-fills the seed so zero read from a file is an explicit value
	if conf.Training.Seed == 0 && conf.srcPath == "" {
		conf.Training.Seed = dfltSeed
	}
	if conf.Training.NumFolds < 2 {
		conf.Training.NumFolds = dfltNumFolds
	}
	if conf.Training.ReportPath == "" {
		conf.Training.ReportPath = dfltReportPath
		log.Warn().
			Str("reportPath", dfltReportPath).
			Msg("reportPath not specified, using default")
	}
	return nil
}
