package views

import (
	"errors"
	"log/slog"
)

// ErrInsufficientSample marks an aggregate whose group fell below its
// configured minimum observation count. The group is excluded from output,
// not surfaced to the caller as a failure.
var ErrInsufficientSample = errors.New("sample count below configured minimum")

// ErrZeroVariance marks a correlation whose input series has no variance,
// for which a coefficient is undefined.
var ErrZeroVariance = errors.New("zero variance in input series")

// Config configures a view engine.
type Config struct {
	Logger     *slog.Logger
	Thresholds Thresholds

	// MaxConcurrency bounds the workers used for per-partition
	// computations. Zero means sequential.
	MaxConcurrency int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return err
	}
	return nil
}

// Engine computes the analytical views. It holds no mutable state: every
// query takes a snapshot and returns rows in deterministic order.
type Engine struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{log: cfg.Logger, cfg: cfg}, nil
}
