/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	config.go: command line and YAML configuration
*/

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/b3nn0/dgpstest/common"
	"github.com/b3nn0/dgpstest/dgps"
	"github.com/b3nn0/dgpstest/ubx"
	"gopkg.in/yaml.v3"
)

type ReceiverConfig struct {
	Port     string `yaml:"port"`
	Log      string `yaml:"log"`
	DynModel int    `yaml:"dynmodel"`
}

type Config struct {
	Recv1 ReceiverConfig `yaml:"recv1"`
	Recv2 ReceiverConfig `yaml:"recv2"`
	Recv3 ReceiverConfig `yaml:"recv3"` // optional uncorrected control receiver

	Baudrate     int           `yaml:"baudrate"`
	Reference    string        `yaml:"reference"` // lat,lon,alt
	Reopen       bool          `yaml:"reopen"`
	NoRTCM       bool          `yaml:"nortcm"`
	UsePPP       bool          `yaml:"use_ppp"`
	MinElevation float64       `yaml:"min_elevation"`
	MinQuality   int           `yaml:"min_quality"`
	Deadline     time.Duration `yaml:"deadline"`
	RTCMLog      string        `yaml:"rtcm_log"`
	ErrLog       string        `yaml:"err_log"`
	Encoder      string        `yaml:"encoder"` // correction encoder command line
	Metrics      string        `yaml:"metrics"` // listen address for /metrics and /status
	Debug        bool          `yaml:"debug"`

	Plot       string `yaml:"-"`
	ConfigPath string `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Recv1:        ReceiverConfig{Port: "/dev/ttyACM0", DynModel: ubx.DYNAMIC_MODEL_STATIONARY},
		Recv2:        ReceiverConfig{Port: "/dev/ttyACM1", DynModel: ubx.DYNAMIC_MODEL_AIRBORNE4G},
		Recv3:        ReceiverConfig{DynModel: ubx.DYNAMIC_MODEL_AIRBORNE4G},
		Baudrate:     common.DEFAULT_BAUD,
		UsePPP:       true,
		MinElevation: common.MIN_ELEVATION_DEG,
		MinQuality:   common.MIN_QUALITY,
		Deadline:     common.STALL_DEADLINE,
		RTCMLog:      common.DEFAULT_RTCM_LOG,
		ErrLog:       common.DEFAULT_ERR_LOG,
	}
}

func bindFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.ConfigPath, "config", c.ConfigPath, "YAML config file, flags given on the command line win")
	fs.StringVar(&c.Recv1.Port, "port1", c.Recv1.Port, "serial port of the reference receiver")
	fs.StringVar(&c.Recv2.Port, "port2", c.Recv2.Port, "serial port of the corrected rover")
	fs.StringVar(&c.Recv3.Port, "port3", c.Recv3.Port, "serial port of the uncorrected rover, optional")
	fs.IntVar(&c.Baudrate, "baudrate", c.Baudrate, "serial baud rate")
	fs.StringVar(&c.Recv1.Log, "log1", c.Recv1.Log, "raw UBX log of receiver 1")
	fs.StringVar(&c.Recv2.Log, "log2", c.Recv2.Log, "raw UBX log of receiver 2")
	fs.StringVar(&c.Recv3.Log, "log3", c.Recv3.Log, "raw UBX log of receiver 3")
	fs.StringVar(&c.Reference, "reference", c.Reference, "reference position (lat,lon,alt)")
	fs.BoolVar(&c.Reopen, "reopen", c.Reopen, "re-open a receiver that stops talking")
	fs.BoolVar(&c.NoRTCM, "nortcm", c.NoRTCM, "don't send corrections to receiver 2")
	fs.BoolVar(&c.UsePPP, "usePPP", c.UsePPP, "use PPP on receiver 1")
	fs.IntVar(&c.Recv1.DynModel, "dynmodel1", c.Recv1.DynModel, "dynamic model for receiver 1")
	fs.IntVar(&c.Recv2.DynModel, "dynmodel2", c.Recv2.DynModel, "dynamic model for receiver 2")
	fs.IntVar(&c.Recv3.DynModel, "dynmodel3", c.Recv3.DynModel, "dynamic model for receiver 3")
	fs.Float64Var(&c.MinElevation, "minelevation", c.MinElevation, "minimum satellite elevation, degrees")
	fs.IntVar(&c.MinQuality, "minquality", c.MinQuality, "minimum satellite quality")
	fs.DurationVar(&c.Deadline, "deadline", c.Deadline, "silence after which a receiver is re-opened")
	fs.StringVar(&c.RTCMLog, "rtcmlog", c.RTCMLog, "correction log")
	fs.StringVar(&c.ErrLog, "errlog", c.ErrLog, "error log")
	fs.StringVar(&c.Encoder, "encoder", c.Encoder, "correction encoder command, corrections are off without one")
	fs.StringVar(&c.Metrics, "metrics", c.Metrics, "listen address for /metrics and /status, e.g. :9110")
	fs.StringVar(&c.Plot, "plot", c.Plot, "render this error log to a PNG next to it and exit")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "log every received message")
}

/*
	parseArgs reads the command line twice: once to find -config, and once
	more on top of the loaded file so that explicit flags override it.
*/
func parseArgs(args []string, output io.Writer) (Config, error) {
	probe := DefaultConfig()
	fs := flag.NewFlagSet("dgpstest", flag.ContinueOnError)
	fs.SetOutput(output)
	bindFlags(fs, &probe)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := DefaultConfig()
	if probe.ConfigPath != "" {
		if err := loadConfig(probe.ConfigPath, &cfg); err != nil {
			return Config{}, err
		}
		fs = flag.NewFlagSet("dgpstest", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		bindFlags(fs, &cfg)
		if err := fs.Parse(args); err != nil {
			return Config{}, err
		}
	} else {
		cfg = probe
	}
	return cfg, cfg.Validate()
}

func loadConfig(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Plot != "" {
		return nil
	}
	if c.Recv1.Port == "" || c.Recv2.Port == "" {
		return errors.New("port1 and port2 are required")
	}
	if c.Baudrate <= 0 {
		return fmt.Errorf("invalid baudrate %d", c.Baudrate)
	}
	for i, r := range []ReceiverConfig{c.Recv1, c.Recv2, c.Recv3} {
		if r.DynModel < 0 || r.DynModel > ubx.DYNAMIC_MODEL_AIRBORNE4G || r.DynModel == 1 {
			return fmt.Errorf("dynmodel%d: invalid dynamic model %d", i+1, r.DynModel)
		}
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("invalid deadline %s", c.Deadline)
	}
	if c.Reference != "" {
		if _, err := dgps.ParseLLH(c.Reference); err != nil {
			return err
		}
	}
	return nil
}
