// Copyright (C) 2025 dwn-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/spf13/cobra"

	dwnconfig "github.com/dwn-project/dwn-node/config"
	"github.com/dwn-project/dwn-node/did"
	"github.com/dwn-project/dwn-node/did/memresolver"
	"github.com/dwn-project/dwn-node/dwnerrors"
	"github.com/dwn-project/dwn-node/eventstream"
	"github.com/dwn-project/dwn-node/eventstream/livefeed"
	"github.com/dwn-project/dwn-node/handlers"
	"github.com/dwn-project/dwn-node/health"
	"github.com/dwn-project/dwn-node/internal/logger"
	"github.com/dwn-project/dwn-node/internal/metrics"
	"github.com/dwn-project/dwn-node/message"
	"github.com/dwn-project/dwn-node/schema"
	"github.com/dwn-project/dwn-node/store"
	"github.com/dwn-project/dwn-node/store/memstore"
	"github.com/dwn-project/dwn-node/store/pebblestore"
	"github.com/dwn-project/dwn-node/store/pgstore"
	"github.com/dwn-project/dwn-node/tenant"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a node: store, schema registry, tenant locks, and HTTP endpoint",
	Long: `serve loads a node configuration, wires up the selected store
backend (memory, pebble, or postgres), loads the tenant DID registry
built by "dwnctl tenant register", and serves the message dispatch,
health, metrics, and debug-tail WebSocket endpoints over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadNodeConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store == nil {
		cfg.Store = &dwnconfig.StoreConfig{Backend: "memory"}
	}

	log := logger.NewDefaultLogger()
	log.SetLevel(logLevelFromString(loggingLevel(cfg)))

	deps, closeStore, err := buildDeps(cfg)
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}
	defer closeStore()
	defer deps.Tenants.Close()
	defer deps.Broker.Close()

	registry := handlers.NewRegistry()
	checker := buildHealthChecker(deps, cfg)
	feed := livefeed.NewServer(deps.Broker)

	mux := http.NewServeMux()
	mux.Handle("/tenants/", dispatchHandler(registry, deps))
	mux.HandleFunc("/healthz", healthzHandler(checker))
	if cfg.Metrics == nil || cfg.Metrics.Enabled {
		mux.Handle("/metrics", metrics.Handler())
	}
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimPrefix(r.URL.Path, "/ws/")
		feed.Handler(tenantID).ServeHTTP(w, r)
	})

	log.Info("node listening", logger.String("addr", serveAddr), logger.String("store_backend", cfg.Store.Backend))
	return http.ListenAndServe(serveAddr, mux)
}

func loggingLevel(cfg *dwnconfig.Config) string {
	if cfg.Logging == nil || cfg.Logging.Level == "" {
		return "info"
	}
	return cfg.Logging.Level
}

func logLevelFromString(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

// buildDeps wraps handlers.Deps with the closer for its store backend.
func buildDeps(cfg *dwnconfig.Config) (*handlers.Deps, func(), error) {
	schemaRegistry, err := schema.NewRegistry(schema.DefaultSchemas())
	if err != nil {
		return nil, nil, fmt.Errorf("compile schema registry: %w", err)
	}

	messages, data, events, closeStore, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	resolver, err := buildResolver(didRegistryPath())
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	deps := &handlers.Deps{
		Schemas:       schemaRegistry,
		Messages:      messages,
		Data:          data,
		Log:           events,
		Resolver:      resolver,
		Broker:        eventstream.New(),
		Tenants:       tenant.NewLocks(10*time.Minute, time.Minute),
		Subscriptions: handlers.NewSubscriptionRegistry(),
	}
	return deps, closeStore, nil
}

func buildStore(cfg *dwnconfig.Config) (store.MessageStore, store.DataStore, store.EventLog, func(), error) {
	backend := "memory"
	if cfg.Store != nil && cfg.Store.Backend != "" {
		backend = cfg.Store.Backend
	}

	switch backend {
	case "memory":
		return memstore.NewMessageStore(), memstore.NewDataStore(), memstore.NewEventLog(), func() {}, nil

	case "pebble":
		if cfg.Store.Dir == "" {
			return nil, nil, nil, nil, errors.New("store.dir is required for the pebble backend")
		}
		db, err := dbm.NewDB("dwn", dbm.PebbleDBBackend, cfg.Store.Dir)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("open pebble database at %s: %w", cfg.Store.Dir, err)
		}
		closer := func() { db.Close() }
		return pebblestore.NewMessageStore(db), pebblestore.NewDataStore(db), pebblestore.NewEventLog(db), closer, nil

	case "postgres":
		if cfg.Store.Postgres == nil {
			return nil, nil, nil, nil, errors.New("store.postgres is required for the postgres backend")
		}
		pg := cfg.Store.Postgres
		pgCfg := &pgstore.Config{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			Database: pg.Database,
			SSLMode:  pg.SSLMode,
		}
		pgStore, err := pgstore.NewStore(context.Background(), pgCfg)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closer := func() { pgStore.Close() }
		return pgStore.MessageStore(), pgStore.DataStore(), pgStore.EventLog(), closer, nil

	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// buildResolver loads every DID document registered by "dwnctl tenant
// register" into an in-memory resolver, then wraps it with a TTL cache so
// concurrent authorizations against the same tenant collapse into one
// lookup.
func buildResolver(registryPath string) (did.Resolver, error) {
	reg, err := loadDIDRegistryFile(registryPath)
	if err != nil {
		return nil, fmt.Errorf("load DID registry: %w", err)
	}
	inner := memresolver.New()
	for _, doc := range reg.Documents {
		inner.Register(doc)
	}
	return did.NewCachingResolver(inner, 5*time.Minute), nil
}

func buildHealthChecker(deps *handlers.Deps, cfg *dwnconfig.Config) *health.HealthChecker {
	checker := health.NewHealthChecker(5 * time.Second)
	checker.RegisterCheck("store", health.StoreHealthCheck(func(ctx context.Context) error {
		_, err := deps.Messages.Query(ctx, "__healthcheck__", nil, nil, nil, nil)
		return err
	}))
	checker.RegisterCheck("schema_registry", health.SchemaRegistryHealthCheck(func() error {
		return deps.Schemas.Validate("Records/Query", map[string]any{
			"interface":        "Records",
			"method":           "Query",
			"messageTimestamp": "2025-01-01T00:00:00.000000Z",
			"filter":           map[string]any{},
		})
	}))
	return checker
}

func healthzHandler(checker *health.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := checker.GetOverallStatus(ctx)
		results := checker.CheckAll(ctx)

		code := http.StatusOK
		if status == health.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": results})
	}
}

// dispatchHandler serves POST /tenants/{tenantID}/dwn, decoding one message
// per request body and running it through the handler registry.
func dispatchHandler(registry *handlers.Registry, deps *handlers.Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		tenantID, ok := tenantFromPath(r.URL.Path)
		if !ok {
			http.Error(w, "path must be /tenants/{tenantID}/dwn", http.StatusBadRequest)
			return
		}

		var msg message.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "malformed message: "+err.Error(), http.StatusBadRequest)
			return
		}

		result, err := registry.Dispatch(r.Context(), deps, tenantID, &msg)
		if err != nil {
			writeResult(w, dwnerrors.StatusFor(dwnerrors.Internal), map[string]any{
				"status": map[string]any{"code": dwnerrors.StatusFor(dwnerrors.Internal), "detail": err.Error()},
			})
			return
		}
		writeResult(w, result.Status.Code, result)
	})
}

func tenantFromPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "tenants" || parts[2] != "dwn" {
		return "", false
	}
	return parts[1], true
}

func writeResult(w http.ResponseWriter, code int, body any) {
	if code == 0 {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
