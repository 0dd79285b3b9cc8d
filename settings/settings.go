// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package settings loads the server configuration from YAML.  Keys
// missing from the file keep their defaults:
//
//     limit_per_page: 50
//     throttle_at: 120
//     throttle_timeframe: 60s
//     allow_options: false
//     debug: false
//     access_log: true
//     mail_errors: [500]
//     emit_format: django
//     strict_accept: false
//     max_depth: 8
package settings

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/serializer"
	"github.com/diffeo/go-restkit/throttle"
	"gopkg.in/yaml.v2"
)

// Settings is the server configuration.
type Settings struct {
	// LimitPerPage is the default collection page size; 0 turns
	// pagination off.
	LimitPerPage int `yaml:"limit_per_page"`

	// ThrottleAt requests per ThrottleTimeframe are let through
	// per caller, when throttling is on.
	ThrottleAt        int           `yaml:"throttle_at"`
	ThrottleTimeframe time.Duration `yaml:"throttle_timeframe"`

	AllowOptions bool `yaml:"allow_options"`
	Debug        bool `yaml:"debug"`

	// AccessLog turns the access log on.
	AccessLog bool `yaml:"access_log"`

	// MailErrors lists the response statuses operators are told
	// about.
	MailErrors []int `yaml:"mail_errors"`

	// EmitFormat is "django" or "flat".
	EmitFormat string `yaml:"emit_format"`

	StrictAccept      bool `yaml:"strict_accept"`
	StrictContentType bool `yaml:"strict_content_type"`
	MaxDepth          int  `yaml:"max_depth"`

	// MaxBody is the largest request body accepted, in bytes.
	MaxBody int64 `yaml:"max_body"`

	// RedisAddr, if set, holds throttle counters in Redis instead
	// of process memory.
	RedisAddr string `yaml:"redis_addr"`

	// Backend is the impl[:address] of the record store.
	Backend string `yaml:"backend"`

	// JWTSecret, if set, enables bearer token authentication.
	JWTSecret string `yaml:"jwt_secret"`

	// AutoCreateAccessKey gives every new user an access key.
	AutoCreateAccessKey bool `yaml:"auto_create_accesskey"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		LimitPerPage:      resource.DefaultLimitPerPage,
		ThrottleAt:        throttle.DefaultAt,
		ThrottleTimeframe: throttle.DefaultTimeframe,
		AccessLog:         true,
		MailErrors:        []int{500},
		EmitFormat:        "django",
		MaxDepth:          serializer.DefaultMaxDepth,
		MaxBody:           resource.DefaultMaxBody,
		Backend:           "memory",
	}
}

// Parse reads YAML settings over the defaults.
func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return s, err
	}
	return s, s.Validate()
}

// Load reads a YAML settings file over the defaults.
func Load(filename string) (Settings, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return Default(), err
	}
	return Parse(data)
}

// Validate checks for settings no server can run with.
func (s Settings) Validate() error {
	if s.LimitPerPage < 0 {
		return errors.New("limit_per_page must not be negative")
	}
	if s.ThrottleAt < 0 || s.ThrottleTimeframe < 0 {
		return errors.New("throttle_at and throttle_timeframe must not be negative")
	}
	if s.MaxDepth < 0 {
		return errors.New("max_depth must not be negative")
	}
	if s.MaxBody < 0 {
		return errors.New("max_body must not be negative")
	}
	if _, err := serializer.ParseFormat(s.EmitFormat); err != nil {
		return fmt.Errorf("emit_format: %v", err)
	}
	return nil
}

// Apply returns the registry-wide resource defaults.  If counters is
// non-nil every resource is throttled through it.
func (s Settings) Apply(counters throttle.Store, c clock.Clock) *resource.Descriptor {
	d := &resource.Descriptor{
		LimitPerPage:      s.LimitPerPage,
		AllowOptions:      s.AllowOptions,
		StrictAccept:      s.StrictAccept,
		StrictContentType: s.StrictContentType,
		DisableLog:        !s.AccessLog,
		Format:            s.EmitFormat,
		MaxDepth:          s.MaxDepth,
		MaxBody:           s.MaxBody,
	}
	if s.LimitPerPage == 0 {
		d.LimitPerPage = resource.Unpaged
	}
	if counters != nil {
		d.Throttle = &throttle.Cache{
			Store:     counters,
			At:        s.ThrottleAt,
			Timeframe: s.ThrottleTimeframe,
			Clock:     c,
		}
	}
	return d
}
