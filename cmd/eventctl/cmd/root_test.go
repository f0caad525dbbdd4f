package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "create-superuser", "import-members", "purge-expired", "expire-invitations"}, names)
}

func TestArgsValidatedBeforeConnecting(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"import needs org and file", []string{"import-members", "only-one"}, "accepts 2 arg(s)"},
		{"migrate takes no args", []string{"migrate", "extra"}, `unknown command "extra"`},
		{"purge takes no args", []string{"purge-expired", "now"}, `unknown command "now"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSuperuserFlagsValidate(t *testing.T) {
	tests := []struct {
		name    string
		flags   superuserFlags
		wantErr string
	}{
		{"ok", superuserFlags{username: "root", email: "root@example.com", password: "correct horse"}, ""},
		{"missing username", superuserFlags{email: "root@example.com", password: "correct horse"}, "--username"},
		{"missing email", superuserFlags{username: "root", password: "correct horse"}, "--email"},
		{"short password", superuserFlags{username: "root", email: "root@example.com", password: "short"}, "at least 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
