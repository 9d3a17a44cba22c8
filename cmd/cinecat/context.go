package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"cinecat/internal/catalog"
	"cinecat/internal/config"
	"cinecat/internal/logging"
	"cinecat/internal/store"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// newLogger writes JSON logs to the log file, and console logs to stderr
// when --verbose is set. A log file left over from an earlier day is rotated
// aside first, and rotated files past the retention window are pruned. The
// returned file must be closed by the caller.
func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, *os.File, error) {
	var writer io.Writer = io.Discard
	if c.verbose != nil && *c.verbose {
		writer = cmd.ErrOrStderr()
	}
	path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	_, rotateErr := logging.RotateStale(path, time.Now())
	file, err := logging.OpenLogFile(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: writer,
		File:   file,
	})
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	if rotateErr != nil {
		logging.WarnWithContext(logger, "log rotation failed; appending to existing file", "log_rotation_failed",
			logging.Error(rotateErr),
			logging.String(logging.FieldImpact, "log file keeps growing until rotation succeeds"),
		)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: logging.RotatedPattern(logging.LogFileName),
		Exclude: []string{path},
	})
	return logger, file, nil
}

// workspace is the catalog restored from the store for one command.
type workspace struct {
	cfg     *config.Config
	logger  *slog.Logger
	logFile *os.File
	store   *store.Store
	catalog *catalog.Catalog
}

func (c *commandContext) openWorkspace(cmd *cobra.Command) (*workspace, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, logFile, err := c.newLogger(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	st, err := store.Open(cfg, logger)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	cat := catalog.New(cfg.CatalogSettings(), nil)
	snap, ok, err := st.Load(commandCtx(cmd))
	if err != nil {
		_ = st.Close()
		_ = logFile.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if ok {
		cat.Replace(snap)
	}
	return &workspace{cfg: cfg, logger: logger, logFile: logFile, store: st, catalog: cat}, nil
}

// withWorkspace runs fn against the restored catalog and releases the store.
func (c *commandContext) withWorkspace(cmd *cobra.Command, fn func(*workspace) error) error {
	ws, err := c.openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.close()
	return fn(ws)
}

// mutate runs fn and saves the catalog when fn reports a change.
func (c *commandContext) mutate(cmd *cobra.Command, fn func(*workspace) (bool, error)) error {
	return c.withWorkspace(cmd, func(ws *workspace) error {
		changed, err := fn(ws)
		if err != nil || !changed {
			return err
		}
		return ws.save(cmd)
	})
}

func (w *workspace) save(cmd *cobra.Command) error {
	if _, err := w.store.Save(commandCtx(cmd), w.catalog.Snapshot()); err != nil {
		return fmt.Errorf("save catalog (changes were not persisted): %w", err)
	}
	return nil
}

func (w *workspace) close() {
	if err := w.store.Close(); err != nil {
		logging.WarnWithContext(w.logger, "store close failed", "store_close",
			logging.Error(err),
			logging.String(logging.FieldImpact, "data directory lock may linger until the process exits"),
		)
	}
	_ = w.logFile.Close()
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
