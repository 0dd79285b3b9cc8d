// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// A Notifier tells an operator about failed requests.
type Notifier interface {
	Notify(req *http.Request, result *Result)
}

// LogNotifier reports failures as error log lines.
type LogNotifier struct {
	Log logrus.FieldLogger
}

// Notify logs the request and its status.
func (n LogNotifier) Notify(req *http.Request, result *Result) {
	log := n.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	fields := logrus.Fields{
		"method":     req.Method,
		"uri":        requestURI(req),
		"status":     result.Status,
		"identifier": result.Identity.Identifier,
	}
	if result.Err != nil {
		log = log.WithError(result.Err)
	}
	log.WithFields(fields).Error("request failed")
}
