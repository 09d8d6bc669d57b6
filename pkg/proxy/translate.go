package proxy

import (
	"fmt"
	"strings"

	"github.com/filesetfs/filesetfs/pkg/driver"
)

// toVirtualPath rewrites a physical path back into logical form by
// replacing the fileset's storage location prefix with its logical
// prefix.
//
// The physical path must start with exactly the storage location; a
// mismatch indicates a resolution bug or a foreign path and is reported
// as a validation error, never silently coerced.
func toVirtualPath(physicalPath, storageLocation, virtualPrefix string) (string, error) {
	if !strings.HasPrefix(physicalPath, storageLocation) {
		return "", validationError(
			fmt.Sprintf("physical path does not start with storage location %q", storageLocation),
			physicalPath)
	}
	return virtualPrefix + physicalPath[len(storageLocation):], nil
}

// toVirtualFileInfo rewrites the path of a physical file status into
// logical form, leaving every other field untouched.
func toVirtualFileInfo(info *driver.FileInfo, storageLocation, virtualPrefix string) (*driver.FileInfo, error) {
	virtualPath, err := toVirtualPath(info.Path, storageLocation, virtualPrefix)
	if err != nil {
		return nil, err
	}

	rewritten := *info
	rewritten.Path = virtualPath
	return &rewritten, nil
}
