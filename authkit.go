// Package authkit is the trust boundary for a multi-tenant backend: token
// issuing and verification, single-use refresh rotation with reuse
// detection, role/permission authorization and privileged-action auditing.
package authkit

import (
	"github.com/pulsefeed/authkit/app"
	"github.com/pulsefeed/authkit/config"
)

type App = app.App
type Builder = app.Builder

func New() *Builder {
	return app.NewBuilder()
}

func WithConfig(cfg *config.Config) *Builder {
	return app.NewBuilder().WithConfig(cfg)
}
