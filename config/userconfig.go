package config

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
)

// UserConfig carries the per-request options embedded in the opaque
// configuration path segment of the addon URL. All fields are
// optional; a malformed segment yields the zero value.
type UserConfig struct {
	Language   string   `json:"language"`
	RPDBKey    string   `json:"rpdbkey"`
	MDBListKey string   `json:"mdblistkey"`
	SessionID  string   `json:"sessionId"`
	Catalogs   []string `json:"catalogs"`
}

// ParseUserConfig decodes a configuration path segment. Two encodings
// are accepted: base64url-encoded JSON, and the legacy
// key=value|key=value form. Unknown keys and decode failures are
// ignored rather than rejected, so stale client URLs keep working.
func ParseUserConfig(segment string) UserConfig {
	var cfg UserConfig
	if segment == "" {
		return cfg
	}
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}

	for _, dec := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
		raw, err := dec.DecodeString(segment)
		if err != nil {
			continue
		}
		if json.Unmarshal(raw, &cfg) == nil {
			return cfg
		}
	}

	// Legacy form: language=ko-KR|rpdbkey=abc
	for _, pair := range strings.Split(segment, "|") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		switch strings.ToLower(key) {
		case "language":
			cfg.Language = value
		case "rpdbkey":
			cfg.RPDBKey = value
		case "mdblistkey":
			cfg.MDBListKey = value
		case "sessionid", "session_id":
			cfg.SessionID = value
		case "catalogs":
			cfg.Catalogs = strings.Split(value, ",")
		}
	}
	return cfg
}

// EncodeUserConfig is the inverse of ParseUserConfig for the JSON
// encoding; used when building install URLs.
func EncodeUserConfig(cfg UserConfig) string {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}
