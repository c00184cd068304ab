// Package storage lays a versioned, typed schema over the flat kv namespace.
// Every logical collection lives under one key of the form
// "househub/v<version>/<name>" and holds a JSON array; single records such as
// the session hold a JSON object.
package storage

// SchemaVersion is bumped when a collection changes shape incompatibly.
const SchemaVersion = "1"

const keyPrefix = "househub/v" + SchemaVersion + "/"

// Versioned keys.
const (
	KeySchemaVersion      = "househub/schema_version"
	KeyUsers              = keyPrefix + "users"
	KeyCases              = keyPrefix + "cases"
	KeyMessages           = keyPrefix + "messages"
	KeyNotifications      = keyPrefix + "notifications"
	KeyAuditLog           = keyPrefix + "audit_log"
	KeyAgentCaseStates    = keyPrefix + "agent_case_states"
	KeySession            = keyPrefix + "session"
	KeySellerAddressCache = keyPrefix + "seller_address_cache"
)

// VersionedKeys lists every key owned by the current schema.
func VersionedKeys() []string {
	return []string{
		KeySchemaVersion,
		KeyUsers,
		KeyCases,
		KeyMessages,
		KeyNotifications,
		KeyAuditLog,
		KeyAgentCaseStates,
		KeySession,
		KeySellerAddressCache,
	}
}

// Keys written by the earlier browser-only layout. They are only read by the
// legacy migration and cleared by an environment reset.
var LegacyKeys = []string{
	"test_users",
	"test_cases",
	"agent_notifications",
	"case_messages",
	"agentCaseStates",
	"seller_has_active_case",
	"showing_registrations",
	"househub_withdrawn_cases",
	"current_case_number",
	"currentUser",
	"agent_session_backup",
	"admin_session_backup",
	"agent_has_seen_benefits",
	"system_audit_log",
	"seller_address_cache",
}

// Per-entity key prefixes of the legacy layout.
const (
	LegacySellerCasePrefix       = "seller_case_"
	LegacySellerCaseStatusPrefix = "seller_case_status_"
	LegacyShowingDataPrefix      = "showing_data_"
	LegacyCaseOffersPrefix       = "case_offers_"
	LegacyShowingRegsPrefix      = "showing_registrations_"
)

// LegacyPrefixes lists the per-entity prefixes swept by a reset.
func LegacyPrefixes() []string {
	return []string{
		LegacySellerCasePrefix,
		LegacySellerCaseStatusPrefix,
		LegacyShowingDataPrefix,
		LegacyCaseOffersPrefix,
		LegacyShowingRegsPrefix,
	}
}
