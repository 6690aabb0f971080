package config

import "time"

type Pipeline struct {
	// Timeout bounds a whole resolution run when the caller sets no deadline.
	Timeout time.Duration `env:"PIPELINE_TIMEOUT" envDefault:"20s"`
}
