// Command shopctl runs operational tasks against the shopdash database and redis.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suteetoe/shopdash/internal/repository"
	"github.com/suteetoe/shopdash/internal/tenant"
	"github.com/suteetoe/shopdash/pkg/config"
	"github.com/suteetoe/shopdash/pkg/database"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/pkg/redisclient"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "shopdash"

// env holds the connections a command opened; close releases them
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *gorm.DB
	redis *redisclient.Client
}

func (e *env) close() {
	if e.redis != nil {
		e.redis.Close()
	}
	if e.db != nil {
		database.Close(e.db)
	}
	e.log.Sync()
}

func (e *env) store() *repository.Store {
	return repository.New(e.db)
}

func (e *env) directory() *tenant.Directory {
	var cache tenant.Cache
	if e.redis != nil {
		cache = e.redis
	}
	return tenant.NewDirectory(e.store(), cache, e.cfg.Tenant.CacheTTL)
}

// connect loads configuration and opens the database, plus redis when configured
func connect(withDB bool) (*env, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: serviceName + "-ctl",
	}); err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: logger.GetLogger()}

	if withDB {
		if e.db, err = database.InitDB(&cfg.DB, e.log); err != nil {
			return nil, err
		}
	}
	if cfg.Redis.Enabled() {
		if e.redis, err = redisclient.NewClient(cfg.Redis, e.log); err != nil {
			e.close()
			return nil, err
		}
	}
	return e, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Operational tasks for shopdash",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newTenantCmd(), newSyncCmd(), newDLQCmd())
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "shopctl:", err)
		os.Exit(1)
	}
}
