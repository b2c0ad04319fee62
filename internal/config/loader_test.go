package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/scoreboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.Coalescer, convey.ShouldEqual, config.CoalescerMemory)
			convey.So(cfg.SweepWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.SweepDebounceMS, convey.ShouldEqual, 2_000)
			convey.So(cfg.MaxPageLimit, convey.ShouldEqual, 100)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.SweepQueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SCOREBOARD_ADDR", ":8080")
			_ = os.Setenv("SCOREBOARD_SWEEP_WORKERS", "3")
			_ = os.Setenv("SCOREBOARD_SWEEP_DEBOUNCE_MS", "250")
			_ = os.Setenv("SCOREBOARD_RESWEEP_RPS", "2.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SweepWorkers, convey.ShouldEqual, 3)
				convey.So(cfg.SweepDebounceMS, convey.ShouldEqual, 250)
				convey.So(cfg.ResweepRPS, convey.ShouldEqual, 2.5)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
store: postgres
database_url: "postgres://u:p@localhost:5432/scores"
sweep_queue_size: 500
max_page_limit: 50
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SCOREBOARD_CONFIG", tmpFile)
			_ = os.Setenv("SCOREBOARD_MAX_PAGE_LIMIT", "25")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Store, convey.ShouldEqual, config.StorePostgres)
				convey.So(cfg.SweepQueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.MaxPageLimit, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("SCOREBOARD_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SCOREBOARD_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SCOREBOARD_SWEEP_WORKERS", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config validation rules", t, func() {
		ctx := context.Background()

		cases := []struct {
			name string
			env  map[string]string
			want string
		}{
			{"empty addr", map[string]string{"SCOREBOARD_ADDR": ""}, "addr must not be empty"},
			{"unknown store", map[string]string{"SCOREBOARD_STORE": "mongo"}, "store must be"},
			{"postgres without url", map[string]string{"SCOREBOARD_STORE": "postgres"}, "database_url is required"},
			{"unknown coalescer", map[string]string{"SCOREBOARD_COALESCER": "etcd"}, "coalescer must be"},
			{"redis without url", map[string]string{"SCOREBOARD_COALESCER": "redis"}, "redis_url is required"},
			{"zero page limit", map[string]string{"SCOREBOARD_MAX_PAGE_LIMIT": "0"}, "max_page_limit"},
		}

		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				for k, v := range tc.env {
					_ = os.Setenv(k, v)
				}
				defer clearConfigEnvVars()

				cfg, err := config.Load(ctx)

				convey.Convey("Then it is rejected as invalid", func() {
					convey.So(cfg, convey.ShouldBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"SCOREBOARD_CONFIG",
		"SCOREBOARD_ADDR",
		"SCOREBOARD_STORE",
		"SCOREBOARD_COALESCER",
		"SCOREBOARD_SWEEP_WORKERS",
		"SCOREBOARD_SWEEP_DEBOUNCE_MS",
		"SCOREBOARD_RESWEEP_RPS",
		"SCOREBOARD_MAX_PAGE_LIMIT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "scoreboard-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
