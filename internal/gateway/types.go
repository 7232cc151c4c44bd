package gateway

// SessionRequest is the create-or-resume session payload. ChannelID is a
// pointer so an absent channel is omitted from the wire payload entirely,
// never sent as null or empty.
type SessionRequest struct {
	ApplicationID  string                 `json:"app_id"`
	UserID         string                 `json:"user_id"`
	DisplayName    string                 `json:"display_name"`
	AvatarURL      string                 `json:"avatar_url,omitempty"`
	Extras         map[string]interface{} `json:"extras,omitempty"`
	UserProperties map[string]interface{} `json:"user_properties,omitempty"`
	Nonce          string                 `json:"nonce"`
	ChannelID      *string                `json:"channel_id,omitempty"`
}

// RoomDescriptor describes the room the backend attached to the session.
type RoomDescriptor struct {
	ID        int64
	Name      string
	AvatarURL string
	Options   string
}

// SessionResult is the parsed create-session response.
type SessionResult struct {
	IdentityToken string
	Room          RoomDescriptor
}

// Wire envelopes.

type sessionEnvelope struct {
	Data struct {
		IdentityToken string `json:"identity_token"`
		Room          struct {
			RoomID    string `json:"room_id"`
			Name      string `json:"name"`
			AvatarURL string `json:"avatar_url"`
			Options   string `json:"options"`
		} `json:"room"`
	} `json:"data"`
}

type policyEnvelope struct {
	Data struct {
		IsSessional bool `json:"is_sessional"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
