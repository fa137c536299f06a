package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"n8n-gportal/pkg/logger"
)

// EnvFileLoader reads KEY=VALUE files into the process environment
type EnvFileLoader struct {
	logger logger.Logger
}

func NewEnvFileLoader(log logger.Logger) *EnvFileLoader {
	return &EnvFileLoader{logger: log}
}

// LoadFile applies filename. Variables already set in the environment win.
// A missing file is not an error.
func (l *EnvFileLoader) LoadFile(filename string) error {
	f, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open environment file %s: %w", filename, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			l.logger.Warn("Invalid line in environment file", "file", filename, "line", lineNum)
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = unquote(strings.TrimSpace(value))

		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			l.logger.Warn("Failed to set environment variable", "key", key, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read environment file %s: %w", filename, err)
	}

	l.logger.Debug("Loaded environment file", "file", filename)
	return nil
}

// LoadDefaults applies .env.local then .env
func (l *EnvFileLoader) LoadDefaults() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := l.LoadFile(name); err != nil {
			return err
		}
	}
	return nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
