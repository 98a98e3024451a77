package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel controls which records a ProductionLogger emits.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ProductionLogger is a structured logger for production use. It emits one
// JSON object per record (or a human-readable line in text format), tagged
// with the service name and the component that produced it.
type ProductionLogger struct {
	level          LogLevel
	serviceName    string
	component      string
	format         string
	output         io.Writer
	timeFormat     string
	metricsEnabled bool
	mu             sync.Mutex
}

// NewProductionLogger creates a logger from logging and development
// configuration. Development mode with pretty logs switches to text format
// and debug logging enables the debug level regardless of Level.
func NewProductionLogger(cfg LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	level := parseLogLevel(cfg.Level)
	if dev.Enabled && dev.DebugLogging {
		level = LogLevelDebug
	}

	format := cfg.Format
	if dev.Enabled && dev.PrettyLogs {
		format = "text"
	}

	var out io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}

	return &ProductionLogger{
		level:       level,
		serviceName: serviceName,
		component:   "adapterkit/core",
		format:      format,
		output:      out,
		timeFormat:  timeFormat,
	}
}

// WithComponent returns a new logger that attributes records to component,
// preserving the parent's configuration.
func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		level:          p.level,
		serviceName:    p.serviceName,
		component:      component,
		format:         p.format,
		output:         p.output,
		timeFormat:     p.timeFormat,
		metricsEnabled: p.metricsEnabled,
	}
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	p.log(LogLevelDebug, msg, fields)
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.log(LogLevelInfo, msg, fields)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.log(LogLevelWarn, msg, fields)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.log(LogLevelError, msg, fields)
}

func (p *ProductionLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if level < p.level {
		return
	}

	now := time.Now()

	if p.format == "text" {
		p.writeText(now, level, msg, fields)
		return
	}

	entry := make(map[string]interface{}, len(fields)+5)
	for k, v := range fields {
		entry[k] = v
	}
	entry["timestamp"] = now.Format(p.timeFormat)
	entry["level"] = level.String()
	entry["service"] = p.serviceName
	entry["component"] = p.component
	entry["message"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		// Fields that fail to marshal (channels, funcs) degrade to text.
		p.writeText(now, level, msg, nil)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = p.output.Write(append(data, '\n'))
}

// writeText emits a human-readable line for local development. Text format
// does not carry the component field; that exists for JSON log aggregation.
func (p *ProductionLogger) writeText(now time.Time, level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder
	b.WriteString(now.Format(p.timeFormat))
	fmt.Fprintf(&b, " [%s] [%s] %s", level.String(), p.serviceName, msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.output, b.String())
}
