package ux

import (
	"errors"
	"testing"
)

func TestShouldPromptInCI(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"GitHub Actions", "GITHUB_ACTIONS", "true"},
		{"GitLab CI", "GITLAB_CI", "true"},
		{"Jenkins", "JENKINS_URL", "http://jenkins.local"},
		{"Generic CI", "CI", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if ShouldPrompt() {
				t.Errorf("ShouldPrompt() = true with %s set", tt.env)
			}
		})
	}
}

func TestSelectWithoutOptions(t *testing.T) {
	_, err := Select("Choose:", nil, "")
	if !errors.Is(err, ErrNoOptions) {
		t.Errorf("Select() error = %v, want ErrNoOptions", err)
	}
}
