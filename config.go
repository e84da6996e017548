// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ull

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"code.hybscloud.com/ull/internal/logger"
	"code.hybscloud.com/ull/mayfly"
)

// Config is the file form of the builder options. Zero fields keep the
// builder defaults; pointer fields apply whenever set, zero included.
//
//	rx_count = 16
//	pipeline_max = 8
//	disable_timeout = "500ms"
//	priorities = [0, 1, 1, 3]
//	log_level = "info"
type Config struct {
	RxCount        int           `toml:"rx_count"`
	TxCount        int           `toml:"tx_count"`
	LinkExtra      *int          `toml:"link_extra"`
	DoneCount      int           `toml:"done_count"`
	PipelineMax    int           `toml:"pipeline_max"`
	DrainSlack     *int          `toml:"drain_slack"`
	TxCmpltMax     int           `toml:"tx_cmplt_max"`
	ConnAckMax     int           `toml:"conn_ack_max"`
	DisableTimeout time.Duration `toml:"disable_timeout"`
	Priorities     []uint8       `toml:"priorities"`
	PinCPU         *int          `toml:"pin_cpu"`
	Spin           int           `toml:"spin"`
	LogLevel       string        `toml:"log_level"`
}

// LoadConfig decodes a TOML file. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("ull: load config: %w", err)
	}
	return cfg, checkUndecoded(md)
}

// DecodeConfig decodes TOML text. Unknown keys are an error.
func DecodeConfig(text string) (Config, error) {
	var cfg Config
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("ull: decode config: %w", err)
	}
	return cfg, checkUndecoded(md)
}

func checkUndecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return fmt.Errorf("ull: unknown config keys: %s", strings.Join(names, ", "))
}

// Builder returns a builder with cfg applied over the defaults. Logs go
// to w when LogLevel is set.
func (cfg Config) Builder(w io.Writer) (*Builder, error) {
	b := New()
	if cfg.RxCount < 0 || cfg.TxCount < 0 || cfg.DoneCount < 0 ||
		cfg.PipelineMax < 0 || cfg.TxCmpltMax < 0 || cfg.ConnAckMax < 0 || cfg.DisableTimeout < 0 {
		return nil, fmt.Errorf("ull: negative capacity in config")
	}
	if cfg.RxCount > 0 {
		b.RxCount(cfg.RxCount)
	}
	if cfg.TxCount > 0 {
		b.TxCount(cfg.TxCount)
	}
	if cfg.LinkExtra != nil {
		if *cfg.LinkExtra < 0 {
			return nil, fmt.Errorf("ull: negative link_extra")
		}
		b.LinkExtra(*cfg.LinkExtra)
	}
	if cfg.DoneCount > 0 {
		b.DoneCount(cfg.DoneCount)
	}
	if cfg.PipelineMax > 0 {
		b.PipelineMax(cfg.PipelineMax)
	}
	if cfg.DrainSlack != nil {
		if *cfg.DrainSlack < 0 {
			return nil, fmt.Errorf("ull: negative drain_slack")
		}
		b.DrainSlack(*cfg.DrainSlack)
	}
	b.TxCmpltMax(cfg.TxCmpltMax)
	b.ConnAckMax(cfg.ConnAckMax)
	if cfg.DisableTimeout > 0 {
		b.DisableTimeout(cfg.DisableTimeout)
	}
	if cfg.Priorities != nil {
		if len(cfg.Priorities) != mayfly.NumContexts {
			return nil, fmt.Errorf("ull: priorities needs %d entries, got %d", mayfly.NumContexts, len(cfg.Priorities))
		}
		var p mayfly.Priorities
		copy(p[:], cfg.Priorities)
		b.Priorities(p)
	}
	if cfg.PinCPU != nil {
		b.PinCPU(*cfg.PinCPU)
	}
	if cfg.Spin > 0 {
		b.Spin(cfg.Spin)
	}
	if cfg.LogLevel != "" {
		lvl, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("ull: log_level %q: %w", cfg.LogLevel, err)
		}
		b.Logger(logger.New(w, lvl))
	}
	return b, nil
}
