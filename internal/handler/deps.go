package handler

import (
	"pairgate/internal/app/gateway"
	"pairgate/internal/app/presence"
	"pairgate/internal/app/storage"
	"pairgate/internal/configs"
)

// AppDeps bundles the wired application services the handlers depend on.
// StorageService is nil when media storage is not configured; the media
// routes are not mounted in that case.
type AppDeps struct {
	Gateway        *gateway.Gateway
	Lifecycle      *gateway.Lifecycle
	Presence       *presence.Service
	Config         *configs.AppConfig
	StorageService storage.StorageService
}
