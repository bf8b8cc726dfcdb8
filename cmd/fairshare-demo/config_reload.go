package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scootdev/fairshare/config/fairnessconfig"
)

// liveConfig holds the fairness controller's config behind a mutex so a
// SIGHUP handler can hot-swap it without the controller ever seeing a torn
// read, the way NewSignalHandlingCmds installs a signal-driven handler
// against a shared, mutex-guarded Cmds.
type liveConfig struct {
	mu   sync.Mutex
	path string
	cfg  fairnessconfig.Config
}

// newLiveConfig loads path once (an empty path resolves the all-defaults
// config) and installs a SIGHUP handler that re-reads it on every signal.
func newLiveConfig(path string) (*liveConfig, error) {
	lc := &liveConfig{path: path}
	if err := lc.reload(); err != nil {
		return nil, err
	}

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGHUP)
	go func() {
		for sig := range sigchan {
			log.Printf("signal %s received; reloading fairness config", sig)
			if err := lc.reload(); err != nil {
				log.WithError(err).Error("fairshare-demo: config reload failed, keeping previous config")
			}
		}
	}()

	return lc, nil
}

func (lc *liveConfig) reload() error {
	var text []byte
	if lc.path != "" {
		b, err := os.ReadFile(lc.path)
		if err != nil {
			return errors.Wrapf(err, "fairshare-demo: reading config file %q", lc.path)
		}
		text = b
	}

	cfg, err := fairnessconfig.Parse(text)
	if err != nil {
		return errors.Wrap(err, "fairshare-demo: parsing fairness config")
	}

	lc.mu.Lock()
	lc.cfg = cfg
	lc.mu.Unlock()

	log.WithField("config", cfg.String()).Info("fairshare-demo: fairness config loaded")
	return nil
}

// Get satisfies fairness.ConfigSource.
func (lc *liveConfig) Get() fairnessconfig.Config {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.cfg
}
