/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/claimpay"
	"github.com/jerry-enebeli/claimpay/config"
	"github.com/jerry-enebeli/claimpay/database"
	"github.com/jerry-enebeli/claimpay/internal/cache"
	redlock "github.com/jerry-enebeli/claimpay/internal/lock"
	"github.com/jerry-enebeli/claimpay/internal/metrics"
	"github.com/jerry-enebeli/claimpay/internal/notification"
	"github.com/jerry-enebeli/claimpay/internal/partner"
	redis_db "github.com/jerry-enebeli/claimpay/internal/redis-db"
)

// ClaimPayCLI represents the CLI application, encapsulating the root Cobra command.
type ClaimPayCLI struct {
	cmd *cobra.Command
}

// claimPayInstance holds the runtime service and the collaborators the commands share.
type claimPayInstance struct {
	claimpay   *claimpay.ClaimPay
	cnf        *config.Configuration
	datasource database.IDataSource
	router     *partner.Router
	queue      *claimpay.Queue
	metrics    *metrics.Metrics
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration file and builds the service before any subcommand runs.
func preRun(app *claimPayInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		// migrate and config only need the configuration.
		if cmd.Annotations["skip_setup"] == "true" {
			return nil
		}

		if err := setupClaimPay(app, cnf); err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		return nil
	}
}

// setupClaimPay connects to postgres and redis and wires the authorization service.
// Redis backed features degrade gracefully: without redis there is no claim lock, no rule
// cache and no webhook queue.
func setupClaimPay(app *claimPayInstance, cfg *config.Configuration) error {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return fmt.Errorf("error getting datasource: %v", err)
	}
	app.datasource = db
	app.metrics = metrics.New(prometheus.DefaultRegisterer)
	app.router = partner.NewRouterFromConfig(cfg, &http.Client{}, app.metrics)

	opts := []claimpay.Option{
		claimpay.WithValidator(app.router),
		claimpay.WithMetrics(app.metrics),
	}

	rdb, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns})
	if err != nil {
		logrus.Warnf("redis unavailable, running without claim locks, rule cache or webhooks: %v", err)
	} else {
		if *cfg.Lock.Enabled {
			ttl := time.Duration(*cfg.Lock.TTLSec) * time.Second
			opts = append(opts, claimpay.WithClaimLocks(redlock.NewClaimLocks(rdb.Client(), ttl)))
		}
		ruleTTL := time.Duration(*cfg.Cache.PhaseRulesTTLSec) * time.Second
		opts = append(opts, claimpay.WithRuleCache(cache.NewCacheWithClient(rdb.Client()), ruleTTL))

		queue, err := claimpay.NewQueue(cfg)
		if err != nil {
			return fmt.Errorf("error creating webhook queue: %v", err)
		}
		app.queue = queue
		opts = append(opts, claimpay.WithQueue(queue))
	}

	newClaimPay, err := claimpay.NewClaimPay(db, opts...)
	if err != nil {
		return fmt.Errorf("error creating claimpay: %v", err)
	}
	app.claimpay = newClaimPay
	return nil
}

// close releases the queue connection when one was opened.
func (app *claimPayInstance) close() {
	if app.queue != nil {
		if err := app.queue.Close(); err != nil {
			logrus.Errorf("error closing webhook queue: %v", err)
		}
	}
}

// NewCLI creates the command-line interface with the authorize, health, workers, migrate and
// config subcommands.
func NewCLI() *ClaimPayCLI {
	var configFile string
	app := &claimPayInstance{}

	var rootCmd = &cobra.Command{
		Use:   "claimpay",
		Short: "Insurance claim payment authorization",
		Run:   func(cmd *cobra.Command, args []string) {},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./claimpay.json", "Configuration file for claimpay")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)

	rootCmd.AddCommand(authorizeCommands(app))
	rootCmd.AddCommand(healthCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(configCommands())

	return &ClaimPayCLI{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w ClaimPayCLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// shutdownTracing flushes spans with a bounded wait.
func shutdownTracing(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("Error during tracing shutdown: %v", err)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
