package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"sessionmix/internal/config"
	"sessionmix/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFileReadable verifies that path is a readable regular file.
func CheckFileReadable(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckArchives runs CheckFileReadable on every archive, numbered in input order.
func CheckArchives(paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for i, path := range paths {
		results = append(results, CheckFileReadable(fmt.Sprintf("Archive %d", i), path))
	}
	return results
}

// CheckSystemDeps evaluates the external binaries for the given config.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, deps.Requirements(cfg))
}
