package training

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Agrid-Dev/thermoptim/internal/regress"
)

// Split selects how records are assigned to the test partition.
type Split int

const (
	SplitUnknown Split = iota
	SplitShuffle
	SplitChronological
)

func (s Split) Valid() bool { return s == SplitShuffle || s == SplitChronological }

func (s Split) String() string {
	switch s {
	case SplitShuffle:
		return "shuffle"
	case SplitChronological:
		return "chronological"
	default:
		return "unknown"
	}
}

func ParseSplit(s string) (Split, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shuffle", "random":
		return SplitShuffle, nil
	case "chronological", "time":
		return SplitChronological, nil
	default:
		return SplitUnknown, fmt.Errorf("%w: split %q", ErrInvalidConfig, s)
	}
}

type Config struct {
	Seed         uint64
	TestFraction float64
	Split        Split
	Estimator    regress.Kind
	Params       regress.Params

	Search  bool
	Grid    Grid
	Folds   int
	Workers int // 0 means GOMAXPROCS

	// Deadline bounds the whole Train call; 0 disables it.
	Deadline time.Duration
}

func DefaultConfig() Config {
	return Config{
		Seed:         42,
		TestFraction: 0.2,
		Split:        SplitShuffle,
		Estimator:    regress.KindGradientBoosting,
		Params:       regress.DefaultParams(),
		Grid:         DefaultGrid(),
		Folds:        3,
	}
}

func (c Config) Validate() error {
	var errs []error
	if !(c.TestFraction > 0 && c.TestFraction < 1) {
		errs = append(errs, fmt.Errorf("test fraction must be in (0, 1), got %v", c.TestFraction))
	}
	if !c.Split.Valid() {
		errs = append(errs, errors.New("split must be shuffle or chronological"))
	}
	if err := c.Params.Validate(c.Estimator); err != nil {
		errs = append(errs, err)
	}
	if c.Search {
		if c.Folds < 2 {
			errs = append(errs, fmt.Errorf("folds must be >= 2, got %d", c.Folds))
		}
		if err := c.Grid.Validate(c.Estimator, c.Params); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must be >= 0"))
	}
	if c.Deadline < 0 {
		errs = append(errs, errors.New("deadline must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
