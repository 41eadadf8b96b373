//go:build linux

package main

import (
	"fmt"

	"github.com/pstrack/pstrack/pkg/ps"
	"github.com/pstrack/pstrack/pkg/ps/gops"
	"github.com/pstrack/pstrack/pkg/ps/procfs"
)

const defaultProvider = "procfs"

var providerNames = []string{"procfs", "gops"}

func newSession() (*ps.Session, error) {
	switch providerName {
	case "procfs":
		prov, err := procfs.New()
		if err != nil {
			return nil, fmt.Errorf("procfs provider: %w", err)
		}
		return ps.NewSession(prov), nil
	case "gops":
		return ps.NewSession(gops.New()), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
}
