package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// fileRoot mirrors the file layout. Every attribute is optional; nil means
// keep the default.
type fileRoot struct {
	Server    *serverBlock    `hcl:"server,block"`
	Sync      *syncBlock      `hcl:"sync,block"`
	Positions *positionsBlock `hcl:"positions,block"`
	Ops       *opsBlock       `hcl:"ops,block"`
	Log       *logBlock       `hcl:"log,block"`
}

type serverBlock struct {
	URL                *string           `hcl:"url,optional"`
	Transport          *string           `hcl:"transport,optional"`
	Namespace          *string           `hcl:"namespace,optional"`
	Event              *string           `hcl:"event,optional"`
	Headers            map[string]string `hcl:"headers,optional"`
	InsecureSkipVerify *bool             `hcl:"insecure_skip_verify,optional"`
	ReconnectDelay     *string           `hcl:"reconnect_delay,optional"`
}

type syncBlock struct {
	At                    *string   `hcl:"at,optional"`
	Debounce              *string   `hcl:"debounce,optional"`
	AlertTTL              *string   `hcl:"alert_ttl,optional"`
	RedrawOn              *[]string `hcl:"redraw_on,optional"`
	SuppressRelationTypes *[]string `hcl:"suppress_relation_types,optional"`
}

type positionsBlock struct {
	Backend       *string `hcl:"backend,optional"`
	Path          *string `hcl:"path,optional"`
	TTL           *string `hcl:"ttl,optional"`
	FlushInterval *string `hcl:"flush_interval,optional"`
}

type opsBlock struct {
	Port *int `hcl:"port,optional"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

// envFunc implements env(name[, fallback]).
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	VarParam: &function.Parameter{Name: "fallback", Type: cty.String},
	Type:     function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if v, ok := os.LookupEnv(args[0].AsString()); ok {
			return cty.StringVal(v), nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return cty.StringVal(""), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{"env": envFunc},
	}
}

// Load reads and validates the file at path. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse decodes HCL source over the defaults and validates the result.
// filename is only used in diagnostics.
func Parse(src []byte, filename string) (Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &root); diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}

	cfg := Default()
	if err := root.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return cfg, nil
}

func (r *fileRoot) apply(cfg *Config) error {
	if s := r.Server; s != nil {
		setString(&cfg.Server.URL, s.URL)
		setString(&cfg.Server.Transport, s.Transport)
		setString(&cfg.Server.Namespace, s.Namespace)
		setString(&cfg.Server.Event, s.Event)
		if s.Headers != nil {
			cfg.Server.Headers = s.Headers
		}
		if s.InsecureSkipVerify != nil {
			cfg.Server.InsecureSkipVerify = *s.InsecureSkipVerify
		}
		if err := setDuration(&cfg.Server.ReconnectDelay, s.ReconnectDelay, "server.reconnect_delay"); err != nil {
			return err
		}
	}

	if s := r.Sync; s != nil {
		if s.At != nil {
			at, err := ParseInstant(*s.At)
			if err != nil {
				return fmt.Errorf("sync.at: %w", err)
			}
			cfg.Sync.At = at
		}
		if err := setDuration(&cfg.Sync.Debounce, s.Debounce, "sync.debounce"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Sync.AlertTTL, s.AlertTTL, "sync.alert_ttl"); err != nil {
			return err
		}
		if s.RedrawOn != nil {
			cfg.Sync.RedrawOn = *s.RedrawOn
		}
		if s.SuppressRelationTypes != nil {
			cfg.Sync.SuppressRelationTypes = *s.SuppressRelationTypes
		}
	}

	if p := r.Positions; p != nil {
		setString(&cfg.Positions.Backend, p.Backend)
		setString(&cfg.Positions.Path, p.Path)
		if err := setDuration(&cfg.Positions.TTL, p.TTL, "positions.ttl"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Positions.FlushInterval, p.FlushInterval, "positions.flush_interval"); err != nil {
			return err
		}
	}

	if o := r.Ops; o != nil && o.Port != nil {
		cfg.Ops.Port = *o.Port
	}

	if l := r.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setString(&cfg.Log.Format, l.Format)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

// ParseInstant reads epoch milliseconds or an RFC 3339 timestamp. An empty
// string or "live" means zero.
func ParseInstant(s string) (int64, error) {
	switch s {
	case "", "live":
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither epoch milliseconds nor RFC 3339", s)
	}
	return t.UnixMilli(), nil
}
