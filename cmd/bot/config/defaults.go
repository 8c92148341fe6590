package config

// Default values for bot configuration.
const (
	DefaultPollingIntervalSeconds = 5
	DefaultExcelThreshold         = 50
	DefaultHTTPTimeoutSeconds     = 30
	DefaultPageSize               = 500

	// Column widths for text rendering.
	DefaultUserColumnWidth = 18
	DefaultNameColumnWidth = 22
	DefaultRoleColumnWidth = 8
)
