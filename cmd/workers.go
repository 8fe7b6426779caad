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

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/jerry-enebeli/claimpay"
	"github.com/jerry-enebeli/claimpay/config"
	redis_db "github.com/jerry-enebeli/claimpay/internal/redis-db"
	"github.com/jerry-enebeli/claimpay/internal/traces"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func redisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

func initializeWorkerServer(conf *config.Configuration, opt asynq.RedisClientOpt) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: conf.Queue.Concurrency,
		Queues:      map[string]int{conf.Queue.WebhookQueue: 1},
	})
}

func initializeTaskHandlers(conf *config.Configuration, mux *asynq.ServeMux) {
	mux.HandleFunc(conf.Queue.WebhookQueue, claimpay.ProcessWebhook)
}

// monitoringHandler serves the asynqmon dashboard under /monitoring and prometheus metrics
// under /metrics.
func monitoringHandler(opt asynq.RedisClientOpt) http.Handler {
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: opt,
	})

	mux := http.NewServeMux()
	mux.Handle(h.RootPath()+"/", h)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// workerCommands defines the "workers" command that delivers queued webhooks.
func workerCommands(app *claimPayInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "workers",
		Short:       "start claimpay webhook workers",
		Annotations: map[string]string{"skip_setup": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := app.cnf

			shutdown, err := traces.SetupOTelSDK(ctx, conf.Tracing)
			if err != nil {
				log.Fatal(err)
			}
			defer shutdownTracing(shutdown)

			opt, err := redisClientOpt(conf)
			if err != nil {
				log.Fatal(err)
			}

			srv := initializeWorkerServer(conf, opt)
			mux := asynq.NewServeMux()
			initializeTaskHandlers(conf, mux)

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Monitoring server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, monitoringHandler(opt)); err != nil {
					log.Fatalf("could not start monitoring server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
