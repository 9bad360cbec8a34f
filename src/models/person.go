package models

// Metadata is the profile payload carried by kind 0 events.
type Metadata struct {
	Name    string `json:"name,omitempty"`
	About   string `json:"about,omitempty"`
	Picture string `json:"picture,omitempty"`
	NIP05   string `json:"nip05,omitempty"`
}

// Person is the locally known profile of a pubkey.
type Person struct {
	PubKey     string `json:"pubkey"`
	Name       string `json:"name,omitempty"`
	About      string `json:"about,omitempty"`
	Picture    string `json:"picture,omitempty"`
	NIP05      string `json:"nip05,omitempty"`
	MetadataAt *int64 `json:"metadata_at,omitempty"`
}
