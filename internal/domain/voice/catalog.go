package voice

import "github.com/google/uuid"

// VoiceCatalogEntry is immutable reference data describing one synthetic voice.
// The same voice can be named by its mnemonic Key, its catalog ID, or its
// vendor-native CanonicalID.
type VoiceCatalogEntry struct {
	ID                 uuid.UUID
	Key                string
	CanonicalID        string
	DisplayName        string
	Language           string
	IsDefaultFreeVoice bool
}

// AliasIDs returns every non-canonical identifier of the voice
func (e *VoiceCatalogEntry) AliasIDs() []string {
	aliases := make([]string, 0, 2)
	if e.ID != uuid.Nil {
		aliases = append(aliases, e.ID.String())
	}
	if e.Key != "" {
		aliases = append(aliases, e.Key)
	}
	return aliases
}
