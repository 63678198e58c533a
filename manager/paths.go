package manager

import "path/filepath"

const (
	markerFileName      = "properly_closed"
	uuidFileName        = "uuid"
	descriptionFileName = "description"
	versionFileName     = "version"
	datastoreDirName    = "datastore"
	namedDirectoryName  = "named_directory"
	allocatorStateName  = "allocator_state"
)

func markerPath(base string) string { return filepath.Join(base, markerFileName) }
func uuidPath(base string) string   { return filepath.Join(datastoreDir(base), uuidFileName) }
func descriptionPath(base string) string {
	return filepath.Join(datastoreDir(base), descriptionFileName)
}
func versionPath(base string) string  { return filepath.Join(base, versionFileName) }
func datastoreDir(base string) string { return filepath.Join(base, datastoreDirName) }

func namedDirectoryPath(base string) string {
	return filepath.Join(datastoreDir(base), namedDirectoryName)
}

func allocatorStatePath(base string) string {
	return filepath.Join(datastoreDir(base), allocatorStateName)
}
