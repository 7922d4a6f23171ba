package cli

import (
	"context"
	"testing"

	"github.com/depscout/depscout/pkg/errors"
)

func TestAnalyzeRejectsInvalidInputs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"bare owner", []string{"acme", "widget"}, errors.ErrCodeInvalidRepository},
		{"traversal", []string{"acme/../etc", "widget"}, errors.ErrCodeInvalidRepository},
		{"empty dependency", []string{"acme/widget", ""}, errors.ErrCodeInvalidDependency},
		{"dependency with slash", []string{"acme/widget", "a/b"}, errors.ErrCodeInvalidDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := ""
			cmd := newAnalyzeCmd(&configPath)
			cmd.SetContext(context.Background())
			cmd.SetArgs(tt.args)
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			err := cmd.Execute()
			if !errors.Is(err, tt.code) {
				t.Errorf("Execute() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestAnalyzeRejectsUnknownMode(t *testing.T) {
	configPath := ""
	cmd := newAnalyzeCmd(&configPath)
	cmd.SetContext(context.Background())
	cmd.SetArgs([]string{"acme/widget", "widget", "--mode", "fuzzy"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	if !errors.Is(err, errors.ErrCodeInvalidMatchMode) {
		t.Errorf("Execute() error = %v, want INVALID_MATCH_MODE", err)
	}
}
