// Package settings は画面の表示設定をセッションクッキーに保存します。サーバー側には保持しません。
package settings

import (
	"encoding/json"
	"fmt"

	"github.com/gin-contrib/sessions"
)

const sessionKeyPreferences = "preferences"

// Theme は表示テーマです。
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

var validRetention = map[string]bool{
	"30": true, "90": true, "180": true, "365": true, "forever": true,
}

var validExportFormats = map[string]bool{
	"csv": true, "xlsx": true, "json": true, "pdf": true,
}

// Preferences は設定画面で変更できる項目です。
type Preferences struct {
	Theme         Theme  `json:"theme"`
	Notifications bool   `json:"notifications"`
	AutoSave      bool   `json:"autoSave"`
	DataRetention string `json:"dataRetention"`
	ExportFormat  string `json:"exportFormat"`
}

// Defaults は初期設定を返します。
func Defaults() Preferences {
	return Preferences{
		Theme:         ThemeSystem,
		Notifications: true,
		AutoSave:      true,
		DataRetention: "90",
		ExportFormat:  "csv",
	}
}

// Validate は各項目が選択肢の範囲内かを検証します。
func (p Preferences) Validate() error {
	switch p.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("unknown theme: %q", p.Theme)
	}
	if !validRetention[p.DataRetention] {
		return fmt.Errorf("unknown data retention: %q", p.DataRetention)
	}
	if !validExportFormats[p.ExportFormat] {
		return fmt.Errorf("unknown export format: %q", p.ExportFormat)
	}
	return nil
}

// Patch は部分更新です。nil の項目は変更しません。
type Patch struct {
	Theme         *Theme  `json:"theme"`
	Notifications *bool   `json:"notifications"`
	AutoSave      *bool   `json:"autoSave"`
	DataRetention *string `json:"dataRetention"`
	ExportFormat  *string `json:"exportFormat"`
}

// Apply は Patch を適用したコピーを返します。
func (p Preferences) Apply(patch Patch) Preferences {
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if patch.Notifications != nil {
		p.Notifications = *patch.Notifications
	}
	if patch.AutoSave != nil {
		p.AutoSave = *patch.AutoSave
	}
	if patch.DataRetention != nil {
		p.DataRetention = *patch.DataRetention
	}
	if patch.ExportFormat != nil {
		p.ExportFormat = *patch.ExportFormat
	}
	return p
}

// Load はセッションから設定を読み込みます。未保存や破損時は初期設定を返します。
func Load(session sessions.Session) Preferences {
	raw, ok := session.Get(sessionKeyPreferences).(string)
	if !ok || raw == "" {
		return Defaults()
	}
	prefs := Defaults()
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return Defaults()
	}
	if err := prefs.Validate(); err != nil {
		return Defaults()
	}
	return prefs
}

// Save は設定をセッションへ書き込みます。
func Save(session sessions.Session, prefs Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	session.Set(sessionKeyPreferences, string(data))
	return session.Save()
}
