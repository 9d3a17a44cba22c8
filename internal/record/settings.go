package record

import (
	"encoding/json"
	"strings"
)

// Settings holds catalog-wide preferences persisted alongside the records.
type Settings struct {
	FullPasscode         string `json:"fullPassword"`
	RestrictedPasscode   string `json:"familyPassword"`
	LoginRequired        bool   `json:"loginPageEnabled"`
	RestrictedModeActive bool   `json:"familyMode"`
}

// SettingsPatch is a partial Settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	FullPasscode         *string `json:"fullPassword,omitempty"`
	RestrictedPasscode   *string `json:"familyPassword,omitempty"`
	LoginRequired        *bool   `json:"loginPageEnabled,omitempty"`
	RestrictedModeActive *bool   `json:"familyMode,omitempty"`
}

// UnmarshalJSON decodes a patch leniently, the way record fields are read.
// Flags accept booleans, numbers, and strings such as "false" or "1";
// passcodes accept strings and numbers. A key holding null or any other kind
// is left absent, as is every key when the value is not an object.
func (p *SettingsPatch) UnmarshalJSON(data []byte) error {
	*p = SettingsPatch{}
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	p.FullPasscode = textSetting(raw, "fullPassword")
	p.RestrictedPasscode = textSetting(raw, "familyPassword")
	p.LoginRequired = flagSetting(raw, "loginPageEnabled")
	p.RestrictedModeActive = flagSetting(raw, "familyMode")
	return nil
}

func textSetting(raw Raw, key string) *string {
	value, ok := raw[key]
	if !ok {
		return nil
	}
	var text string
	switch v := decode(value).(type) {
	case string:
		text = v
	case json.Number:
		text = v.String()
	default:
		return nil
	}
	return &text
}

func flagSetting(raw Raw, key string) *bool {
	value, ok := raw[key]
	if !ok {
		return nil
	}
	var flag bool
	switch v := decode(value).(type) {
	case bool:
		flag = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		flag = f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false", "0":
		default:
			flag = true
		}
	default:
		return nil
	}
	return &flag
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.FullPasscode == nil && p.RestrictedPasscode == nil &&
		p.LoginRequired == nil && p.RestrictedModeActive == nil
}

// Apply returns s with every present field of p overriding it.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.FullPasscode != nil {
		s.FullPasscode = *p.FullPasscode
	}
	if p.RestrictedPasscode != nil {
		s.RestrictedPasscode = *p.RestrictedPasscode
	}
	if p.LoginRequired != nil {
		s.LoginRequired = *p.LoginRequired
	}
	if p.RestrictedModeActive != nil {
		s.RestrictedModeActive = *p.RestrictedModeActive
	}
	return s
}

// Patch returns a patch that sets every field of s.
func (s Settings) Patch() SettingsPatch {
	return SettingsPatch{
		FullPasscode:         &s.FullPasscode,
		RestrictedPasscode:   &s.RestrictedPasscode,
		LoginRequired:        &s.LoginRequired,
		RestrictedModeActive: &s.RestrictedModeActive,
	}
}
