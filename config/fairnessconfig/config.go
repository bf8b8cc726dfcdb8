// Package fairnessconfig holds the one runtime knob SPEC_FULL.md's ambient
// config section requires: the fairness controller's JSON-configured
// tunables, parsed the way the teacher's sched/config packages parse
// scheduler JSON config, with string durations and defaults applied when
// fields are left zero-valued.
package fairnessconfig

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DefaultAlpha, DefaultTickInterval, and DefaultStatsTimeout mirror
// spec.md §4.2/§6: the fairy interval is fixed at 1000ms and the per-job
// stats call has a 100ms deadline unless overridden.
const (
	DefaultAlpha        = 0.5
	DefaultTickInterval = time.Second
	DefaultStatsTimeout = 100 * time.Millisecond
)

// FairnessJSONConfig is the on-disk (or inline) JSON shape for the
// fairness controller. Alpha is re-read at the top of every tick by
// holding the parsed Config in a value the daemon can hot-swap on SIGHUP,
// so operators can retune responsiveness without a restart.
type FairnessJSONConfig struct {
	Alpha        float64 `json:"alpha"`
	TickInterval string  `json:"tick_interval"`
	StatsTimeout string  `json:"stats_timeout"`
}

// Config is the parsed, defaulted form FairnessJSONConfig resolves to.
type Config struct {
	Alpha        float64
	TickInterval time.Duration
	StatsTimeout time.Duration
}

// String renders the effective configuration for startup logging.
func (c Config) String() string {
	return fmt.Sprintf("alpha=%v tick_interval=%v stats_timeout=%v", c.Alpha, c.TickInterval, c.StatsTimeout)
}

// Parse unmarshals JSON config text (or treats an empty slice as "{}")
// into a FairnessJSONConfig, then resolves it against the defaults above.
func Parse(text []byte) (Config, error) {
	if len(text) == 0 {
		text = []byte("{}")
	}
	var raw FairnessJSONConfig
	if err := json.Unmarshal(text, &raw); err != nil {
		return Config{}, errors.Wrap(err, "fairnessconfig: couldn't parse config")
	}
	return raw.Resolve()
}

// Resolve applies defaults to any zero-valued field and parses the
// string durations, returning the effective Config.
func (raw FairnessJSONConfig) Resolve() (Config, error) {
	cfg := Config{
		Alpha:        raw.Alpha,
		TickInterval: DefaultTickInterval,
		StatsTimeout: DefaultStatsTimeout,
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultAlpha
	}
	if raw.TickInterval != "" {
		d, err := time.ParseDuration(raw.TickInterval)
		if err != nil {
			return Config{}, errors.Wrapf(err, "fairnessconfig: bad tick_interval %q", raw.TickInterval)
		}
		cfg.TickInterval = d
	}
	if raw.StatsTimeout != "" {
		d, err := time.ParseDuration(raw.StatsTimeout)
		if err != nil {
			return Config{}, errors.Wrapf(err, "fairnessconfig: bad stats_timeout %q", raw.StatsTimeout)
		}
		cfg.StatsTimeout = d
	}
	return cfg, nil
}
