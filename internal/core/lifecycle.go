package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable modules receive their raw YAML section before Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules set defaults, open resources and register services.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their provisioned state. Validate must not
// have side effects.
type Validator interface {
	Validate() error
}

// Starter modules launch background work once every module is provisioned.
type Starter interface {
	Start() error
}

// Stopper modules are stopped in reverse start order on shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Closer modules hold resources (files, pools) opened during Provision
// that must be released even when the module was never started.
type Closer interface {
	Close(ctx context.Context) error
}
