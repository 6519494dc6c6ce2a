package questengine

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/studyquestapp/studyquest/questengine/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	Engine EngineConfig      `toml:"engine"`
	DB     database.DBConfig `toml:"db"`
	Spaces SpacesConfig      `toml:"spaces"`
	Legacy LegacyConfig      `toml:"legacy"`
	// Quests overrides the built-in catalog when non-empty.
	Quests []QuestConfig `toml:"quests"`
}

type QuestConfig struct {
	ID     string `toml:"id"`
	Label  string `toml:"label"`
	Reward int64  `toml:"reward"`
	Action string `toml:"action"`
	Target int    `toml:"target"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
}

type EngineConfig struct {
	UserID          string `toml:"user_id"`
	Username        string `toml:"username"`
	DataDir         string `toml:"data_dir"`
	SelectionSize   int    `toml:"selection_size"`
	DailyBonus      int64  `toml:"daily_bonus"`
	RolloverSecs    int    `toml:"rollover_check_secs"`
	StoreWatchSecs  int    `toml:"store_watch_secs"`
	BalanceCacheSec int    `toml:"balance_cache_secs"`
	// UseMemoryStore runs without Postgres; balances live in memory.
	UseMemoryStore bool `toml:"use_memory_store"`
}

type SpacesConfig struct {
	Enabled  bool   `toml:"enabled"`
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	Endpoint string `toml:"endpoint"`
	Prefix   string `toml:"prefix"`
}

type LegacyConfig struct {
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

func (c *Config) applyDefaults() {
	if c.Engine.DataDir == "" {
		c.Engine.DataDir = "data"
	}
	if c.Engine.SelectionSize <= 0 {
		c.Engine.SelectionSize = 3
	}
	if c.Engine.DailyBonus <= 0 {
		c.Engine.DailyBonus = 100
	}
	if c.Engine.RolloverSecs <= 0 || c.Engine.RolloverSecs > 60 {
		c.Engine.RolloverSecs = 60
	}
	if c.Engine.StoreWatchSecs <= 0 {
		c.Engine.StoreWatchSecs = 2
	}
	if c.Engine.BalanceCacheSec <= 0 {
		c.Engine.BalanceCacheSec = 30
	}
}
