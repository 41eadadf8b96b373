//go:build unix && !linux

package main

import (
	"fmt"

	"github.com/pstrack/pstrack/pkg/ps"
	"github.com/pstrack/pstrack/pkg/ps/gops"
)

const defaultProvider = "gops"

var providerNames = []string{"gops"}

func newSession() (*ps.Session, error) {
	if providerName != "gops" {
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
	return ps.NewSession(gops.New()), nil
}
