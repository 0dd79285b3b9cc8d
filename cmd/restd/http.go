// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-restkit/accesslog"
	"github.com/diffeo/go-restkit/auth"
	"github.com/diffeo/go-restkit/backend"
	"github.com/diffeo/go-restkit/jsonrpc"
	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/resource"
	"github.com/diffeo/go-restkit/restserver"
	"github.com/diffeo/go-restkit/settings"
	"github.com/diffeo/go-restkit/throttle"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// TokenTTL is the lifetime of issued bearer tokens.
const TokenTTL = 12 * time.Hour

// Server assembles the HTTP interface.
type Server struct {
	Settings settings.Settings
	Store    record.Store
	Version  string
	Log      *logrus.Logger

	// RequestLog, if set, gets a debug line per request.
	RequestLog *logrus.Logger

	Clock clock.Clock

	accessLog *accesslog.Async
	redis     *redis.Client
}

func (s *Server) counters() throttle.Store {
	if s.Settings.RedisAddr == "" {
		return throttle.NewMemoryStore(throttle.DefaultMemorySize)
	}
	s.redis = redis.NewClient(&redis.Options{Addr: s.Settings.RedisAddr})
	return throttle.RedisStore{Client: s.redis, Prefix: "restd:"}
}

// credentials builds the authenticators over the store's accounts.
func (s *Server) credentials() ([]auth.Authenticator, *auth.Token, error) {
	users, err := s.Store.Adapter(auth.UserSchema.Name)
	if err != nil {
		return nil, nil, err
	}
	keys, err := s.Store.Adapter(auth.AccessKeySchema.Name)
	if err != nil {
		return nil, nil, err
	}
	userStore := auth.RecordUsers{Adapter: users}
	result := []auth.Authenticator{
		auth.AccessKey{Keys: auth.RecordKeys{Keys: keys, Users: users, Clock: s.Clock}},
		auth.Basic{Users: userStore},
		auth.UserAuthenticator{Users: userStore},
	}
	if s.Settings.JWTSecret == "" {
		return result, nil, nil
	}
	token := &auth.Token{Secret: []byte(s.Settings.JWTSecret), Clock: s.Clock}
	return append([]auth.Authenticator{*token}, result...), token, nil
}

func (s *Server) logger() *logrus.Logger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Handler builds the router with every resource, the RPC bridge and
// /metrics, wrapped in the middleware chain.
func (s *Server) Handler() (http.Handler, error) {
	log := s.logger()
	registry := resource.NewRegistry(s.Version, s.Store)
	registry.Log = log
	registry.Defaults = s.Settings.Apply(s.counters(), s.Clock)

	credentials, token, err := s.credentials()
	if err != nil {
		return nil, err
	}
	if err = registerDemo(registry, credentials); err != nil {
		return nil, err
	}
	if token != nil {
		if err = registerToken(registry, *token, credentials[1:], TokenTTL); err != nil {
			return nil, err
		}
	}
	if _, err = restserver.RegisterMap(registry); err != nil {
		return nil, err
	}

	dispatcher := &restserver.Dispatcher{
		Registry:   registry,
		Log:        log,
		Notifier:   restserver.LogNotifier{Log: log},
		MailErrors: s.Settings.MailErrors,
		Clock:      s.Clock,
	}
	if s.Settings.AccessLog {
		var writer accesslog.Writer = accesslog.LogrusWriter{Log: log}
		if db := backend.DB(s.Store); db != nil {
			writer = accesslog.PostgresWriter{DB: db}
		}
		s.accessLog = accesslog.NewAsync(writer, accesslog.DefaultQueueSize, log)
		dispatcher.AccessLog = s.accessLog
	}

	r := mux.NewRouter()
	restserver.PopulateRouter(r, dispatcher)
	jsonrpc.Mount(r, &jsonrpc.Bridge{Dispatcher: dispatcher, Log: log, Clock: s.Clock})
	r.Handle("/metrics", promhttp.Handler())

	n := negroni.New(negroni.NewRecovery())
	if s.RequestLog != nil {
		n.Use(negroni.HandlerFunc(s.logRequest))
	}
	n.UseHandler(r)
	return n, nil
}

func (s *Server) logRequest(resp http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(resp, req)
	entry := s.RequestLog.WithFields(logrus.Fields{
		"method":   req.Method,
		"uri":      req.URL.RequestURI(),
		"remote":   req.RemoteAddr,
		"duration": time.Since(start),
	})
	if rw, ok := resp.(negroni.ResponseWriter); ok {
		entry = entry.WithField("status", rw.Status())
	}
	entry.Debug("request")
}

// Close flushes the access log and drops connections.
func (s *Server) Close() error {
	if s.accessLog != nil {
		s.accessLog.Close()
		if dropped := s.accessLog.Dropped(); dropped > 0 {
			s.logger().WithField("dropped", dropped).Warn("access log entries dropped")
		}
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
