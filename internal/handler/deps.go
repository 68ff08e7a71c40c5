package handler

import (
	"roomhub/internal/app/chat"
	"roomhub/internal/app/storage"
	"roomhub/internal/configs"
)

// AppDeps carries everything the handlers need. Storage is nil when attachments are disabled.
type AppDeps struct {
	Manager *chat.Manager
	Config  *configs.AppConfig
	Storage storage.StorageService
}
