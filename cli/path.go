package cli

import (
	"os"
	"path/filepath"

	"github.com/ardnew/lgen/pkg"
)

// baseConfig is the file name of the YAML configuration file.
const baseConfig = "config.yaml"

// defaultDirMode is the permission mode for created directories.
const defaultDirMode os.FileMode = 0o700

// configPath joins the configuration directory with the given path elements.
//
// If no elements are given, it returns [pkg.ConfigDir].
func configPath(elem ...string) string {
	return filepath.Join(append([]string{pkg.ConfigDir()}, elem...)...)
}

// mkdirAllRequired creates the configuration and cache directories.
func mkdirAllRequired() error {
	for _, dir := range []string{pkg.ConfigDir(), pkg.CacheDir()} {
		err := os.MkdirAll(dir, defaultDirMode)
		if err != nil {
			return err
		}
	}

	return nil
}
