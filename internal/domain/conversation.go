package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TurnMetadata is the structured context recorded alongside a turn.
type TurnMetadata struct {
	ProductTypesShown []string
	ProductsShown     int
	ToolUsed          Tool
	FiltersApplied    map[string]string
	HasImage          bool
}

// Turn is one message in a session's conversation log.
type Turn struct {
	Role      Role
	Content   string
	Metadata  TurnMetadata
	CreatedAt time.Time
}
