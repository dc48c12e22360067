package env

import (
	"time"

	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

var variables = new(Environment)

// Process the environment variables set for hera.
func Process() error {
	if err := envconfig.Process("hera", variables); err != nil {
		return errors.Wrap(err, "failed to process environment variables")
	}

	// set the log level
	if err := log.SetLevel(variables.LogLevel); err != nil {
		return errors.Wrap(err, "failed to set log level")
	}

	return nil
}

// Variables returns the processed environment variables.
func Variables() Environment {
	return *variables
}

// Environment defines the environment variables used
// by hera. The admin identity, the default worker host
// group and the request timeout are read-only inputs to
// the schedule center.
type Environment struct {
	LogLevel          string        `default:"info"`
	Port              int           `default:"8080"`
	Admin             string        `default:"admin"`
	DefaultHostGroup  uint          `default:"1"`
	RequestTimeout    time.Duration `default:"10s"`
	PeerHost          string        `default:"localhost"`
	PeerPort          int           `default:"8887"`
	PeerListen        string        `default:":8887"`
	PeerRules         string        `default:""`
	ConnectTimeout    time.Duration `default:"2s"`
	HeartbeatInterval time.Duration `default:"5s"`
	MaxFrameSize      int           `default:"4194304"`
	PushWorkers       int           `default:"0"` // 0 = NumCPU * 4
	PushQueueSize     int           `default:"1024"`
	PushIdleTimeout   time.Duration `default:"60s"`
	DatabaseType      string        `default:"sqlite"`
	DatabaseDSN       string        `default:"hera.db"`
}
