package hierarchy

// Agent is a reseller account scoped to one software tenant. The hierarchy is
// owned by an external system; the settlement engine only reads it.
type Agent struct {
	Software string `json:"software"`
	Username string `json:"username"`
	Parent   string `json:"parent,omitempty"`
	Remark   string `json:"remark,omitempty"`

	// Permissions is the agent's permission bitmask (see internal/perm).
	Permissions int64 `json:"permissions"`
}
