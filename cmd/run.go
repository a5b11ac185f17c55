// ironshield
// (C) 2024, Deutsche Telekom IT GmbH
//
// Deutsche Telekom IT GmbH and all other contributors /
// copyright owners license this file to you under the Apache
// License, Version 2.0 (the "License"); you may not use this
// file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/config"
	"github.com/caas-team/ironshield/pkg/shield"
	"github.com/caas-team/ironshield/pkg/targets"
	"github.com/caas-team/ironshield/pkg/telemetry"
)

// NewCmdRun creates a new run command
func NewCmdRun(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run ironshield",
		Long:  `IronShield will be started with the provided configuration`,
		RunE:  run(version),
	}

	NewFlag("api.address", "apiAddress").String().Bind(cmd, ":8080", "api: The address the server is listening on")
	NewFlag("api.allowedOrigins", "apiAllowedOrigins").StringSlice().Bind(cmd, nil,
		"api: Origins allowed to access the api and the streams. All origins are allowed if empty")

	NewFlag("engine.interval", "interval").Duration().Bind(cmd, 5*time.Second, "engine: The interval between two checks of the targets")
	NewFlag("engine.timeout", "timeout").Duration().Bind(cmd, 10*time.Second, "engine: The timeout of a single check")
	NewFlag("engine.concurrency", "concurrency").Int().Bind(cmd, 10, "engine: The maximum amount of checks running at once")
	NewFlag("engine.historySize", "historySize").Int().Bind(cmd, 20, "engine: The amount of samples kept per target")
	NewFlag("engine.subscriberBuffer", "subscriberBuffer").Int().Bind(cmd, 100,
		"engine: The amount of updates queued per stream client before updates are dropped")

	NewFlag("targets.type", "targetsType").StringP("t").Bind(cmd, targets.TypeFile,
		"defines the provider of the targets document: static, file, http or git")
	NewFlag("targets.file.path", "targetsFilePath").String().Bind(cmd, "config.yaml",
		"file provider: The path to the targets document; changes are picked up automatically")
	NewFlag("targets.http.url", "targetsHttpUrl").String().Bind(cmd, "", "http provider: The url of the targets document")
	NewFlag("targets.http.token", "targetsHttpToken").String().Bind(cmd, "", "http provider: Bearer token to authenticate the http endpoint")
	NewFlag("targets.http.interval", "targetsHttpInterval").Duration().Bind(cmd, targets.DefaultRefreshInterval,
		"http provider: The interval the document is fetched again")
	NewFlag("targets.http.timeout", "targetsHttpTimeout").Duration().Bind(cmd, 30*time.Second, "http provider: The timeout of a single request")
	NewFlag("targets.http.retry.count", "targetsHttpRetryCount").Int().Bind(cmd, 3, "http provider: Amount of retries fetching the document")
	NewFlag("targets.http.retry.delay", "targetsHttpRetryDelay").Duration().Bind(cmd, time.Second, "http provider: The initial delay between retries")
	NewFlag("targets.git.repoUrl", "targetsGitRepoUrl").String().Bind(cmd, "", "git provider: The url of the repository holding the document")
	NewFlag("targets.git.branch", "targetsGitBranch").String().Bind(cmd, "", "git provider: The branch to read; the default branch if empty")
	NewFlag("targets.git.path", "targetsGitPath").String().Bind(cmd, "ironshield.yaml", "git provider: The path of the document in the repository")
	NewFlag("targets.git.token", "targetsGitToken").String().Bind(cmd, "", "git provider: The access token of the repository")
	NewFlag("targets.git.interval", "targetsGitInterval").Duration().Bind(cmd, targets.DefaultRefreshInterval,
		"git provider: The interval the repository is pulled")

	NewFlag("telemetry.endpoint", "telemetryEndpoint").String().Bind(cmd, "",
		"telemetry: The endpoint uptime reports are posted to. Overrides the endpoint of the targets document")
	NewFlag("telemetry.dashboardName", "telemetryDashboardName").String().Bind(cmd, "",
		"telemetry: The dashboard name of the reports. Defaults to the site name of the targets document")
	NewFlag("telemetry.timeout", "telemetryTimeout").Duration().Bind(cmd, 10*time.Second, "telemetry: The timeout of a single report")
	NewFlag("telemetry.archive.driver", "telemetryArchiveDriver").String().Bind(cmd, telemetry.DriverSQLite,
		"telemetry: The database driver of the archive: sqlite3 or postgres")
	NewFlag("telemetry.archive.dsn", "telemetryArchiveDsn").String().Bind(cmd, "",
		"telemetry: The data source name of the archive. The archive is disabled if empty")

	NewFlag("log.file", "logFile").String().Bind(cmd, "", "log: Additionally write the logs to this file, rotated by size")

	return cmd
}

// run is the entry point to start ironshield
func run(version string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := logger.NewLogger()
		ctx := logger.IntoContext(context.Background(), log)

		cfg, err := config.Decode(viper.AllSettings())
		if err != nil {
			log.Error("Failed to decode the config", "error", err)
			return err
		}
		if cfg.Log.File != "" {
			log = logger.NewLogger(logger.NewFileHandler(cfg.Log.File))
			ctx = logger.IntoContext(ctx, log)
		}

		if err = cfg.Validate(ctx); err != nil {
			log.Error("Error while validating the config", "error", err)
			return err
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := shield.New(cfg, version)

		log.Info("Running ironshield", "version", version, "targets", cfg.Targets.Type)
		if err = s.Run(ctx); err != nil {
			log.Error("IronShield stopped with an error", "error", err)
			return err
		}
		log.Info("IronShield stopped")
		return nil
	}
}
