package models

// Manifest describes the addon to clients: which resources it serves
// and which catalogs it contributes.
type Manifest struct {
	ID            string            `json:"id"`
	Version       string            `json:"version"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Logo          string            `json:"logo,omitempty"`
	Resources     []string          `json:"resources"`
	Types         []string          `json:"types"`
	IDPrefixes    []string          `json:"idPrefixes"`
	Catalogs      []ManifestCatalog `json:"catalogs"`
	BehaviorHints map[string]bool   `json:"behaviorHints,omitempty"`
}

// ManifestCatalog is one catalog entry of the manifest.
type ManifestCatalog struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Name  string          `json:"name"`
	Extra []ManifestExtra `json:"extra,omitempty"`
}

// ManifestExtra declares one filter a catalog supports.
type ManifestExtra struct {
	Name       string   `json:"name"`
	Options    []string `json:"options,omitempty"`
	IsRequired bool     `json:"isRequired,omitempty"`
}
