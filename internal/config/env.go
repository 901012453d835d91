package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// LoadEnvFile reads path and sets environment variables for each line "KEY=value"
// (an optional "export " prefix is allowed). Variables already present in the
// environment are left alone. Skips empty lines and lines starting with #.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	path = filepath.Clean(path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(strings.TrimPrefix(line[:idx], "export "))
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, unquoteEnv(value)); err != nil {
			return err
		}
	}
	return sc.Err()
}

func unquoteEnv(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
