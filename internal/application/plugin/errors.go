package plugin

import "errors"

var errPluginNoName = errors.New("plugin chain: plugin has empty name")
