package templates

import (
	_ "embed"
)

//go:embed sync_failed.html
var syncFailedHTML string

//go:embed integration_connected.html
var integrationConnectedHTML string
