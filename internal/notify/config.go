// Package notify delivers change events to the online collaborators of a relation.
package notify

import "time"

// Config defines the notification pipeline configuration.
type Config struct {
	// QueueSize is the number of events buffered before new events are dropped.
	QueueSize int `yaml:"queue_size"`
	// Workers is the number of goroutines resolving recipients and fanning out.
	Workers int `yaml:"workers"`
	// SendBuffer is the per-connection outbound message buffer.
	SendBuffer int `yaml:"send_buffer"`
	// WriteTimeout bounds a single websocket write and a recipient lookup.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PingInterval is how often idle connections are pinged.
	PingInterval time.Duration `yaml:"ping_interval"`
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		QueueSize:    256,
		Workers:      4,
		SendBuffer:   32,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.QueueSize <= 0 {
		out.QueueSize = def.QueueSize
	}
	if out.Workers <= 0 {
		out.Workers = def.Workers
	}
	if out.SendBuffer <= 0 {
		out.SendBuffer = def.SendBuffer
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.PingInterval <= 0 {
		out.PingInterval = def.PingInterval
	}
	return &out
}
