// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package settings

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/throttle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
	assert.Equal(t, 50, s.LimitPerPage)
	assert.Equal(t, 120, s.ThrottleAt)
	assert.Equal(t, 60*time.Second, s.ThrottleTimeframe)
	assert.True(t, s.AccessLog)
	assert.Equal(t, []int{500}, s.MailErrors)
	assert.Equal(t, "django", s.EmitFormat)
	assert.Equal(t, 8, s.MaxDepth)
	assert.EqualValues(t, resource.DefaultMaxBody, s.MaxBody)
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`
limit_per_page: 10
throttle_at: 5
throttle_timeframe: 2m
allow_options: true
access_log: false
mail_errors: [500, 502]
emit_format: flat
redis_addr: localhost:6379
strict_content_type: true
max_body: 1024
`))
	require.NoError(t, err)
	assert.Equal(t, 10, s.LimitPerPage)
	assert.Equal(t, 5, s.ThrottleAt)
	assert.Equal(t, 2*time.Minute, s.ThrottleTimeframe)
	assert.True(t, s.AllowOptions)
	assert.False(t, s.AccessLog)
	assert.Equal(t, []int{500, 502}, s.MailErrors)
	assert.Equal(t, "flat", s.EmitFormat)
	assert.Equal(t, "localhost:6379", s.RedisAddr)
	assert.Equal(t, 8, s.MaxDepth)
	assert.True(t, s.StrictContentType)
	assert.EqualValues(t, 1024, s.MaxBody)

	d := s.Apply(nil, nil)
	assert.True(t, d.StrictContentType)
	assert.EqualValues(t, 1024, d.MaxBody)
}

func TestParseErrors(t *testing.T) {
	for _, doc := range []string{
		"limit_per_page: -1",
		"emit_format: yaml",
		"no_such_setting: 1",
		"throttle_timeframe: soon",
		"max_depth: [1]",
		"max_body: -5",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "settings")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	filename := filepath.Join(dir, "restd.yaml")
	require.NoError(t, ioutil.WriteFile(filename, []byte("debug: true\n"), 0644))

	s, err := Load(filename)
	require.NoError(t, err)
	assert.True(t, s.Debug)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	s := Default()
	d := s.Apply(nil, nil)
	assert.Equal(t, 50, d.LimitPerPage)
	assert.Nil(t, d.Throttle)
	assert.False(t, d.DisableLog)
	assert.Equal(t, "django", d.Format)

	s.LimitPerPage = 0
	s.AccessLog = false
	s.ThrottleAt = 3
	c := clock.NewMock()
	d = s.Apply(throttle.NewMemoryStore(10), c)
	assert.Equal(t, resource.Unpaged, d.LimitPerPage)
	assert.True(t, d.DisableLog)
	if cache, ok := d.Throttle.(*throttle.Cache); assert.True(t, ok) {
		assert.Equal(t, 3, cache.At)
		assert.Equal(t, time.Minute, cache.Timeframe)
		assert.Equal(t, c, cache.Clock)
	}
}
