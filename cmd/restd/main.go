// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restd serves a demonstration API of authors, their books
// and articles about the books over REST and JSON-RPC, with
// Prometheus metrics at /metrics.
//
//     restd --config restd.yaml --http :5980 --backend postgres://localhost/restd
//
// The adduser command creates an account for the credential-protected
// resources.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/diffeo/go-restkit/accesslog"
	"github.com/diffeo/go-restkit/auth"
	"github.com/diffeo/go-restkit/backend"
	"github.com/diffeo/go-restkit/record"
	"github.com/diffeo/go-restkit/settings"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// daemon holds what the global flags set up.
var daemon struct {
	Settings settings.Settings
	Backend  backend.Backend
	Store    record.Store
}

var addUser = cli.Command{
	Name:      "adduser",
	Usage:     "create a user account",
	ArgsUsage: "username password",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.NewExitError("need a username and a password", 2)
		}
		users, err := daemon.Store.Adapter(auth.UserSchema.Name)
		if err != nil {
			return err
		}
		user, err := auth.RecordUsers{Adapter: users}.Add(c.Args().Get(0), c.Args().Get(1))
		if err != nil {
			return err
		}
		logrus.WithField("username", user.Username).Info("created user")
		if !daemon.Settings.AutoCreateAccessKey {
			return nil
		}
		keys, err := daemon.Store.Adapter(auth.AccessKeySchema.Name)
		if err != nil {
			return err
		}
		key, err := auth.RecordKeys{Keys: keys, Users: users}.Generate(user)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func serve(c *cli.Context) error {
	log := logrus.StandardLogger()
	var reqLogger *logrus.Logger
	if c.Bool("log-requests") {
		reqLogger = &logrus.Logger{
			Out:       log.Out,
			Formatter: log.Formatter,
			Hooks:     log.Hooks,
			Level:     logrus.DebugLevel,
		}
	}
	server := &Server{
		Settings:   daemon.Settings,
		Store:      daemon.Store,
		Version:    c.String("api-version"),
		Log:        log,
		RequestLog: reqLogger,
	}
	handler, err := server.Handler()
	if err != nil {
		return err
	}
	defer server.Close()

	bind := c.String("http")
	log.WithFields(logrus.Fields{
		"http":    bind,
		"backend": daemon.Backend.Implementation,
		"version": server.Version,
	}).Info("serving")
	return http.ListenAndServe(bind, handler)
}

func main() {
	daemon.Backend = backend.Backend{Implementation: "memory"}
	app := cli.NewApp()
	app.Name = "restd"
	app.Usage = "serve the demonstration REST API"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML settings file",
		},
		cli.StringFlag{
			Name:  "http",
			Value: ":5980",
			Usage: "[ip]:port for HTTP REST interface",
		},
		cli.GenericFlag{
			Name:  "backend",
			Value: &daemon.Backend,
			Usage: "impl[:address] of the record storage backend",
		},
		cli.StringFlag{
			Name:  "api-version",
			Value: "1.0",
			Usage: "API version label and URL prefix",
		},
		cli.BoolFlag{
			Name:  "log-requests",
			Usage: "log all requests",
		},
	}
	app.Commands = []cli.Command{addUser}
	app.Before = func(c *cli.Context) (err error) {
		daemon.Settings = settings.Default()
		if filename := c.String("config"); filename != "" {
			daemon.Settings, err = settings.Load(filename)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"err":    err,
					"config": filename,
				}).Error("Could not load YAML configuration")
				return err
			}
		}
		if daemon.Settings.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
		if !c.IsSet("backend") && daemon.Settings.Backend != "" {
			if err = daemon.Backend.Set(daemon.Settings.Backend); err != nil {
				return err
			}
		}
		daemon.Store, err = daemon.Backend.Store(schemas(), accesslog.Migration())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err":     err,
				"backend": daemon.Backend.String(),
			}).Error("Could not create record store")
		}
		return err
	}
	app.Action = serve
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("restd failed")
	}
}
