package payroll

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// AllowedLogoExtensions lists the accepted logo upload types.
var AllowedLogoExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true,
}

// GetOrInitSettings returns the settings row, creating it from defaults
// when absent. Safe to call concurrently and repeatedly.
func GetOrInitSettings(ctx context.Context, store SettingsStore, defaults CompanySettings) (*CompanySettings, error) {
	s, err := store.GetSettings(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load settings", Err: err}
	}
	if s != nil {
		return s, nil
	}

	if defaults.CompanyName == "" {
		defaults.CompanyName = DefaultCompanyName
	}
	if err := store.CreateSettingsIfAbsent(ctx, defaults); err != nil {
		return nil, &PersistenceError{Op: "initialise settings", Err: err}
	}

	s, err = store.GetSettings(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load settings", Err: err}
	}
	if s == nil {
		return nil, &PersistenceError{Op: "load settings", Err: fmt.Errorf("settings row missing after initialisation")}
	}
	return s, nil
}

// SettingsUpdate carries optional changes. Nil fields are left untouched.
type SettingsUpdate struct {
	CompanyName    *string
	CompanyAddress *string
	LogoPath       *string
}

// Apply returns s with the update applied. An explicitly empty company
// name is rejected.
func (u SettingsUpdate) Apply(s CompanySettings) (CompanySettings, error) {
	if u.CompanyName != nil {
		name := strings.TrimSpace(*u.CompanyName)
		if name == "" {
			return s, invalid("company_name", "cannot be empty")
		}
		s.CompanyName = name
	}
	if u.CompanyAddress != nil {
		s.CompanyAddress = *u.CompanyAddress
	}
	if u.LogoPath != nil {
		s.LogoPath = *u.LogoPath
	}
	return s, nil
}

// UpdateSettings loads (or initialises) the row, applies u and saves it.
func UpdateSettings(ctx context.Context, store SettingsStore, defaults CompanySettings, u SettingsUpdate) (*CompanySettings, error) {
	current, err := GetOrInitSettings(ctx, store, defaults)
	if err != nil {
		return nil, err
	}

	next, err := u.Apply(*current)
	if err != nil {
		return nil, err
	}
	if err := store.UpdateSettings(ctx, next); err != nil {
		return nil, &PersistenceError{Op: "update settings", Err: err}
	}
	return &next, nil
}

// LogoExtension validates an uploaded logo filename and returns its
// lower-cased extension without the dot.
func LogoExtension(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || !AllowedLogoExtensions[ext] {
		return "", invalid("logo", "invalid file type, upload PNG, JPG, JPEG, GIF, or SVG")
	}
	return ext, nil
}
