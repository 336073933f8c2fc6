// Package errors provides the structured error taxonomy used by the trading
// core and surfaced by the HTTP layer.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeInvalidConfig  Code = "INVALID_CONFIG"
	CodeSystemDisabled Code = "SYSTEM_DISABLED"
	CodeFeatureOff     Code = "FEATURE_DISABLED"

	// Lookup errors
	CodeNPCNotFound     Code = "NPC_NOT_FOUND"
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeNPCDisabled     Code = "NPC_DISABLED"
	CodePlayerOffline   Code = "PLAYER_OFFLINE"

	// Quota errors
	CodeOnCooldown    Code = "ON_COOLDOWN"
	CodeLimitReached  Code = "LIMIT_REACHED"
	CodeLimitExceeded Code = "LIMIT_EXCEEDED"

	// Item errors
	CodeNoSellableItems Code = "NO_SELLABLE_ITEMS"
	CodeInvalidItem     Code = "INVALID_ITEM"
	CodeSlotsFull       Code = "SLOTS_FULL"

	// NPC lifecycle errors
	CodeInvalidNPCID     Code = "INVALID_NPC_ID"
	CodeNPCExists        Code = "NPC_EXISTS"
	CodeSpawnFailed      Code = "SPAWN_FAILED"
	CodeSpawnInProgress  Code = "SPAWN_IN_PROGRESS"
	CodeInvalidLifecycle Code = "INVALID_LIFECYCLE_STATE"
)

// Kind groups codes into the categories callers branch on.
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindNotFound
	KindQuota
	KindInvalidItem
	KindLifecycle
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindQuota:
		return "quota"
	case KindInvalidItem:
		return "invalid_item"
	case KindLifecycle:
		return "lifecycle"
	default:
		return "internal"
	}
}

// Kind maps a code to its taxonomy category.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidConfig, CodeSystemDisabled, CodeFeatureOff:
		return KindConfiguration
	case CodeNPCNotFound, CodeSessionNotFound, CodeNPCDisabled, CodePlayerOffline:
		return KindNotFound
	case CodeOnCooldown, CodeLimitReached, CodeLimitExceeded:
		return KindQuota
	case CodeNoSellableItems, CodeInvalidItem, CodeSlotsFull:
		return KindInvalidItem
	case CodeInvalidNPCID, CodeNPCExists, CodeSpawnFailed, CodeSpawnInProgress, CodeInvalidLifecycle:
		return KindLifecycle
	default:
		return KindInternal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// 400 - bad input
	case CodeInvalidNPCID, CodeInvalidItem, CodeNoSellableItems, CodeInvalidConfig:
		return http.StatusBadRequest

	// 404 - resource doesn't exist
	case CodeNPCNotFound, CodeSessionNotFound, CodePlayerOffline:
		return http.StatusNotFound

	// 409 - state doesn't allow operation
	case CodeNPCExists, CodeSpawnInProgress, CodeSlotsFull, CodeInvalidLifecycle:
		return http.StatusConflict

	// 403 - feature or npc switched off
	case CodeSystemDisabled, CodeFeatureOff, CodeNPCDisabled:
		return http.StatusForbidden

	// 429 - quota
	case CodeOnCooldown, CodeLimitReached, CodeLimitExceeded:
		return http.StatusTooManyRequests

	case CodeSpawnFailed:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
