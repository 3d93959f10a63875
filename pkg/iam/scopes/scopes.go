package scopes

// ============================================================================
// SCOPES
// ============================================================================

const (
	// Super scope - full access to everything
	ScopeAll = "*"

	// Conversation scopes
	ScopeConversationsAll    = "conversations:*"
	ScopeConversationsRead   = "conversations:read"
	ScopeConversationsWrite  = "conversations:write"
	ScopeConversationsDelete = "conversations:delete"
	ScopeConversationsExport = "conversations:export"

	// Memory scopes (raw history access)
	ScopeMemoryAll   = "memory:*"
	ScopeMemoryRead  = "memory:read"
	ScopeMemoryWrite = "memory:write"

	// Chat scopes
	ScopeChatAll  = "chat:*"
	ScopeChatSend = "chat:send"
)

// ScopeCategories organizes scopes by domain
var ScopeCategories = map[string][]string{
	"Conversations": {
		ScopeConversationsAll,
		ScopeConversationsRead,
		ScopeConversationsWrite,
		ScopeConversationsDelete,
		ScopeConversationsExport,
	},
	"Memory": {
		ScopeMemoryAll,
		ScopeMemoryRead,
		ScopeMemoryWrite,
	},
	"Chat": {
		ScopeChatAll,
		ScopeChatSend,
	},
}

// ScopeDescriptions provides human-readable descriptions
var ScopeDescriptions = map[string]string{
	ScopeAll: "Full access to everything",

	ScopeConversationsAll:    "Full access to conversations",
	ScopeConversationsRead:   "View conversation metadata",
	ScopeConversationsWrite:  "Start and rename conversations",
	ScopeConversationsDelete: "Delete conversations and their history",
	ScopeConversationsExport: "Export conversation transcripts",

	ScopeMemoryAll:   "Full access to conversation memory",
	ScopeMemoryRead:  "Read the visible history of a conversation",
	ScopeMemoryWrite: "Replace the visible history of a conversation",

	ScopeChatAll:  "Full access to chat",
	ScopeChatSend: "Send chat messages to the assistant",
}

// ScopeGroups are predefined bundles handed out with tokens
var ScopeGroups = map[string][]string{
	"chat_user": {
		ScopeConversationsAll,
		ScopeChatSend,
	},
	"memory_client": {
		ScopeMemoryRead,
		ScopeMemoryWrite,
		ScopeConversationsRead,
	},
	"read_only": {
		ScopeConversationsRead,
		ScopeMemoryRead,
	},
}
