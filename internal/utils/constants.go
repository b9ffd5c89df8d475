package utils

import "time"

// Remote import service endpoints, relative to the server base URL
const (
	LoginPath  = "/auth/admin/login"
	ImportPath = "/admin/patent/import"
	// ImportFlagParam is the boolean query parameter on ImportPath
	ImportFlagParam = "onlyValidInvention"
	// ImportFileField is the multipart field carrying the workbook
	ImportFileField = "file"
)

// SpreadsheetMimeType is sent for every uploaded part, whatever its extension
const SpreadsheetMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SpreadsheetExtensions are matched case-insensitively by the scanner
var SpreadsheetExtensions = []string{".xlsx", ".xls"}

// Upload pacing
const (
	DefaultUploadTimeout  = 10 * time.Minute
	DefaultCooldown       = 3 * time.Second
	DefaultRequestTimeout = 60 * time.Second
)

// Schema version
const SchemaVersion = "1.0"

// DefaultErrorMessage is used when the service omits a message
const DefaultErrorMessage = "unknown error"
