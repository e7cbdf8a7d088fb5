package accesslog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Format names the key=value tokens the parser extracts from a log line.
// Each field holds the token key; an empty key disables that field (except
// Status and Pool, which are always required and fall back to defaults).
type Format struct {
	Time                 string `yaml:"time"`
	Method               string `yaml:"method"`
	Path                 string `yaml:"path"`
	Status               string `yaml:"status"`
	Pool                 string `yaml:"pool"`
	Release              string `yaml:"release"`
	UpstreamStatus       string `yaml:"upstream_status"`
	UpstreamAddr         string `yaml:"upstream_addr"`
	RequestTime          string `yaml:"request_time"`
	UpstreamResponseTime string `yaml:"upstream_response_time"`
}

// DefaultFormat matches the structured nginx log_format used by the proxy:
//
//	... status=200 pool=blue release=v1.0 upstream_status=200
//	upstream_addr=172.19.0.3:8000 request_time=0.003 upstream_response_time=0.002
func DefaultFormat() Format {
	return Format{
		Time:                 "time",
		Method:               "method",
		Path:                 "path",
		Status:               "status",
		Pool:                 "pool",
		Release:              "release",
		UpstreamStatus:       "upstream_status",
		UpstreamAddr:         "upstream_addr",
		RequestTime:          "request_time",
		UpstreamResponseTime: "upstream_response_time",
	}
}

type formatFile struct {
	Fields Format `yaml:"fields"`
}

// LoadFormat reads a token-layout override from a YAML file. Keys not set
// in the file keep their defaults.
func LoadFormat(path string) (Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Format{}, fmt.Errorf("read format file: %w", err)
	}
	var f formatFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Format{}, fmt.Errorf("parse format file: %w", err)
	}
	return mergeFormat(f.Fields), nil
}

func mergeFormat(f Format) Format {
	def := DefaultFormat()
	if f.Time == "" {
		f.Time = def.Time
	}
	if f.Method == "" {
		f.Method = def.Method
	}
	if f.Path == "" {
		f.Path = def.Path
	}
	if f.Status == "" {
		f.Status = def.Status
	}
	if f.Pool == "" {
		f.Pool = def.Pool
	}
	if f.Release == "" {
		f.Release = def.Release
	}
	if f.UpstreamStatus == "" {
		f.UpstreamStatus = def.UpstreamStatus
	}
	if f.UpstreamAddr == "" {
		f.UpstreamAddr = def.UpstreamAddr
	}
	if f.RequestTime == "" {
		f.RequestTime = def.RequestTime
	}
	if f.UpstreamResponseTime == "" {
		f.UpstreamResponseTime = def.UpstreamResponseTime
	}
	return f
}
