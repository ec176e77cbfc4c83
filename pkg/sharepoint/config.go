package sharepoint

import "os"

// Environment variables holding the library coordinates.
const (
	EnvTenantID        = "SHAREPOINT_TENANT_ID"
	EnvSiteName        = "SHAREPOINT_SITE_NAME"
	EnvDocumentLibrary = "SHAREPOINT_DOCUMENT_LIBRARY"
)

// DefaultDocumentLibrary is the conventional name of a site's default
// document library.
const DefaultDocumentLibrary = "Documents"

// Config identifies a single document library.
type Config struct {
	TenantID        string
	SiteName        string
	DocumentLibrary string
}

// ConfigFromEnv reads the library coordinates from the environment.
// The document library falls back to the site default when unset.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		TenantID:        os.Getenv(EnvTenantID),
		SiteName:        os.Getenv(EnvSiteName),
		DocumentLibrary: os.Getenv(EnvDocumentLibrary),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() (Config, error) {
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	if c.DocumentLibrary == "" {
		c.DocumentLibrary = DefaultDocumentLibrary
	}
	return c, nil
}

// validate checks the settings that have no viable default.
func (c Config) validate() error {
	if c.TenantID == "" {
		return &MissingSettingError{Setting: EnvTenantID}
	}
	if c.SiteName == "" {
		return &MissingSettingError{Setting: EnvSiteName}
	}
	return nil
}
