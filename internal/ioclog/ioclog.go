// Package ioclog centralizes structured logging: a thin layer over
// logrus that parses the IOC_LOG environment variable as a default
// level plus optional "component=level" overrides, e.g.
// "info,server=debug".
package ioclog

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const envVar = "IOC_LOG"
const defaultDirective = "info"

var overrides = map[string]logrus.Level{}
var defaultLevel = logrus.InfoLevel

func init() {
	directive := os.Getenv(envVar)
	if directive == "" {
		directive = defaultDirective
	}
	parseDirective(directive)

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(defaultLevel)
}

func parseDirective(directive string) {
	for _, part := range strings.Split(directive, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			name := part[:eq]
			lvl, err := logrus.ParseLevel(part[eq+1:])
			if err != nil {
				continue
			}
			overrides[name] = lvl
			continue
		}
		if lvl, err := logrus.ParseLevel(part); err == nil {
			defaultLevel = lvl
		}
	}
}

// For returns a logger scoped to a named component (a module, transformer,
// or subsystem), honoring any per-component level override from IOC_LOG.
func For(component string) *logrus.Entry {
	entry := logrus.WithField("component", component)
	if lvl, ok := overrides[component]; ok {
		l := logrus.New()
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(lvl)
		return l.WithField("component", component)
	}
	return entry
}
