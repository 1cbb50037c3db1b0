package constants

import "time"

// Context keys
const (
	ContextKeyUserID    = "user_id"
	ContextKeyTokenID   = "token_id"
	ContextKeyTokenExp  = "token_expires_at"
	ContextKeyRequestID = "request_id"
)

// Request headers
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	BearerPrefix        = "Bearer "
)

// Account rules
const (
	MinPasswordLength = 8
	MaxNameLength     = 255
)

// Task field limits
const (
	MinTaskTitleLength       = 2
	MaxTaskTitleLength       = 100
	MaxTaskDescriptionLength = 256
)

// DueDateLayout is the dd-mm-yyyy hh:mm wire format for due dates.
const DueDateLayout = "02-01-2006 15:04"

// Cache keys for the unfiltered collection listings.
const (
	CacheKeyTasks       = "tasks:all"
	CacheKeyUsers       = "users:all"
	CacheKeyRoles       = "roles:all"
	CacheKeyComments    = "comments:all"
	CacheKeyAttachments = "attachments:all"
)

// DefaultCacheTTL is the freshness window for cached listings.
const DefaultCacheTTL = 3600 * time.Second

// Token revocation entries live under this prefix.
const RevokedTokenKeyPrefix = "auth:revoked:"
