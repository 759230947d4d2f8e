package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath maps a user-supplied store location to a file path.
//
// A path with a .json, .yaml, .yml or .toml extension names the file
// directly. Anything else, including a dotted directory such as
// ~/.matrixsend, is a directory holding [DefaultFileName].
// An empty path means the current directory, and "~" or a "~/" prefix
// expands to the home directory.
func ResolvePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "."
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}

	if info, err := os.Stat(trimmed); err == nil && info.IsDir() {
		return filepath.Join(trimmed, DefaultFileName), nil
	}
	if _, err := FormatFor(trimmed); err == nil {
		return trimmed, nil
	}
	return filepath.Join(trimmed, DefaultFileName), nil
}

// Exists reports whether a credential store file is present at path.
func Exists(path string) (bool, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(resolved)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat credentials: %w", err)
	}
}

// Load reads, parses and validates the credential store at path.
//
// Returns an error wrapping [ErrNotFound] when the file does not exist.
func Load(path string) (*Credentials, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	format, err := FormatFor(resolved)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, resolved)
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes and validates credential store data.
//
// Environment variables are expanded in every string field and in health
// header values before validation.
func Parse(data []byte, format Format) (*Credentials, error) {
	var creds Credentials
	if err := format.unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", format, err)
	}

	if err := creds.expandAndValidate(); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Save writes creds to the store at path, creating parent directories.
//
// An existing file is only replaced when force is true; otherwise Save
// returns an error wrapping [ErrExists]. The file is readable by the owner
// only, since it holds an access token.
func Save(path string, creds *Credentials, force bool) (string, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return "", err
	}
	format, err := FormatFor(resolved)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(resolved); err == nil && !force {
		return "", fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, resolved)
	}

	data, err := format.marshal(creds)
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create credentials dir: %w", err)
	}
	if err := writeFileAtomic(dir, resolved, data); err != nil {
		return "", fmt.Errorf("write credentials: %w", err)
	}
	return resolved, nil
}

// writeFileAtomic replaces target only once data is fully on disk, so a
// failed write leaves any previous store intact.
func writeFileAtomic(dir, target string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, target)
}
