package backend

import (
	"fmt"

	"purchasing/internal/analytics"
	"purchasing/internal/config"
	gsheet "purchasing/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		XLSXPath:       appConfig.XLSXPath,
		XLSXOutputPath: appConfig.XLSXOutputPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleOAuth: gsheet.OAuthCredentials{
			ClientJSON: appConfig.GoogleOAuthClientJSON,
			ClientFile: appConfig.GoogleOAuthClientFile,
			TokenJSON:  appConfig.GoogleOAuthTokenJSON,
			TokenFile:  appConfig.GoogleOAuthTokenFile,
		},
		CacheTTL:                 appConfig.SheetsCacheTTL,

		SheetReceived: appConfig.SheetReceived,
		SheetPending:  appConfig.SheetPending,
		SheetHistory:  appConfig.SheetHistory,
		SheetSummary:  appConfig.SheetSummary,
		SheetTrend:    appConfig.SheetTrend,

		DataDirectory: appConfig.DataDirectory,
		Classifier:    analytics.StandardLocations(appConfig.StandardLocations...),
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}

	case XLSXBackend:
		if c.XLSXPath == "" {
			return fmt.Errorf("XLSX path is required for xlsx backend")
		}

	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}

	case MemoryBackend:
		// DataDirectory defaults to "data"; missing files leave tabs empty.
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, SheetsBackend, MemoryBackend, XLSXBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
