package fsx

import (
	"context"
	"net/http"

	"github.com/Abraxas-365/chatmemory/pkg/errx"
)

// FileReader reads whole files by path.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// FileWriter writes and removes whole files by path.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
}

// FileSystem is a flat, slash-separated object store. Paths are relative to
// the backend root.
type FileSystem interface {
	FileReader
	FileWriter
}

// ============================================================================
// Errors
// ============================================================================

var ErrRegistry = errx.NewRegistry("FS")

var (
	CodeFileNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "File not found")
	CodeInvalidPath  = ErrRegistry.Register("INVALID_PATH", errx.TypeValidation, http.StatusBadRequest, "Invalid file path")
	CodeIO           = ErrRegistry.Register("IO", errx.TypeExternal, http.StatusBadGateway, "File storage operation failed")
)

func ErrFileNotFound() *errx.Error {
	return ErrRegistry.New(CodeFileNotFound)
}

func ErrInvalidPath() *errx.Error {
	return ErrRegistry.New(CodeInvalidPath)
}

func ErrIO(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeIO, cause)
}
