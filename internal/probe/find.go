// Package probe locates and loads the vendor J-Link library and
// exposes it as an rtt.Transport, together with the probe bring-up
// sequence (open, device select, interface, speed, connect).
package probe

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const libPrefix = "libjlinkarm"

// ErrLibraryNotFound means no J-Link shared library could be located
// in the loader path or the standard SEGGER install directories.
var ErrLibraryNotFound = errors.New("probe: J-Link library not found")

// FindLibrary searches for the J-Link shared library. The loader path
// environment variable is checked first, then the platform's standard
// SEGGER install location.
func FindLibrary() (string, error) {
	if path := findInLoaderPath(); path != "" {
		return path, nil
	}
	var path string
	switch runtime.GOOS {
	case "darwin":
		path = findDarwin("/Applications/SEGGER")
	default:
		path = findLinux("/opt/SEGGER")
	}
	if path == "" {
		return "", ErrLibraryNotFound
	}
	return path, nil
}

func loaderPathEnv() string {
	if runtime.GOOS == "darwin" {
		return "DYLD_LIBRARY_PATH"
	}
	return "LD_LIBRARY_PATH"
}

func findInLoaderPath() string {
	env := os.Getenv(loaderPathEnv())
	if env == "" {
		return ""
	}
	for _, dir := range strings.Split(env, ":") {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.Type().IsRegular() && strings.HasPrefix(e.Name(), libPrefix) {
				return filepath.Join(dir, e.Name())
			}
		}
	}
	return ""
}

// findLinux walks the SEGGER install tree. 32-bit builds of the
// library carry an _x86 suffix; prefer the variant matching our own
// word size.
func findLinux(root string) string {
	var candidates []string
	x86Found := false
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() && strings.HasPrefix(d.Name(), libPrefix) {
			candidates = append(candidates, path)
			if strings.Contains(path, "_x86") {
				x86Found = true
			}
		}
		return nil
	})

	is64 := strconv.IntSize == 64
	for _, path := range candidates {
		if is64 {
			if !strings.Contains(path, "_x86") {
				return path
			}
		} else if !x86Found || strings.Contains(path, "_x86") {
			return path
		}
	}
	return ""
}

func findDarwin(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "JLink") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		// Prefer the unversioned dylib, fall back to any match.
		for _, f := range files {
			if f.Name() == libPrefix+".dylib" {
				return filepath.Join(dir, f.Name())
			}
		}
		for _, f := range files {
			if f.Type().IsRegular() && strings.HasPrefix(f.Name(), libPrefix) {
				return filepath.Join(dir, f.Name())
			}
		}
	}
	return ""
}
