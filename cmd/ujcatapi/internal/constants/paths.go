package constants

import "os"

// ServiceName identifies this service in logs, status responses and events.
const ServiceName = "ujcatapi"

// Default file and directory paths used by the application.
const (
	// DefaultConfigPath is read when no -config flag is given. A missing file
	// at this path is not an error.
	DefaultConfigPath = "/etc/ujcatapi.yaml"

	// DefaultLogFile is the log file name inside logging.path.
	DefaultLogFile = "main.log"
)

// File system permissions for created log directories and files.
const (
	DirPermissions  os.FileMode = 0755
	FilePermissions os.FileMode = 0644
)
