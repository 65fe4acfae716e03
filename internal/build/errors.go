package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrAdd                 = errors.New("add failed")
	ErrUnsupported         = errors.New("unsupported instruction")
)
