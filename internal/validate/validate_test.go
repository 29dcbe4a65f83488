package validate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provenlabs/opsledger/internal/validate"
)

func TestRegistry_BuiltinsPresent(t *testing.T) {
	t.Parallel()

	r := validate.NewRegistry()

	fileHash, ok := r.Get("proof.file_hash")
	require.True(t, ok)
	assert.Equal(t, validate.KindProof, fileHash.Kind)
	assert.NotNil(t, fileHash.Validator)

	configFormat, ok := r.Get("proof.config_format")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", configFormat.Version)
	assert.NotNil(t, configFormat.Validator)
}

func TestRegistry_UnknownIsNotAnError(t *testing.T) {
	t.Parallel()

	r := validate.NewRegistry()

	_, ok := r.Get("proof.nonexistent")
	assert.False(t, ok)
}

func TestRegistry_ListByKind(t *testing.T) {
	t.Parallel()

	r := validate.NewRegistry()
	r.Register(validate.Spec{
		ID:         "action.restart_switch",
		Name:       "Restart Switch",
		Version:    "0.1.0",
		Kind:       validate.KindAction,
		ScriptPath: "scripts/restart_switch.sh",
	})

	proofs := r.ListByKind(validate.KindProof)
	require.Len(t, proofs, 2)
	assert.Equal(t, "proof.config_format", proofs[0].ID)
	assert.Equal(t, "proof.file_hash", proofs[1].ID)

	actions := r.ListByKind(validate.KindAction)
	require.Len(t, actions, 1)
	assert.Equal(t, "action.restart_switch", actions[0].ID)
}

func TestFileHashValidator(t *testing.T) {
	t.Parallel()

	v := &validate.FileHashValidator{}
	ctx := context.Background()

	// sha256("hello")
	const helloHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	t.Run("match", func(t *testing.T) {
		t.Parallel()

		res, err := v.Validate(ctx, []byte("hello"), map[string]any{"expected_hash": helloHash})
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
		assert.Equal(t, helloHash, res.Report["computed_hash"])
		assert.Equal(t, 5, res.Report["file_size"])
	})

	t.Run("mismatch", func(t *testing.T) {
		t.Parallel()

		res, err := v.Validate(ctx, []byte("goodbye"), map[string]any{"expected_hash": helloHash})
		require.NoError(t, err)
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "Hash mismatch")
	})

	t.Run("no expected hash passes", func(t *testing.T) {
		t.Parallel()

		res, err := v.Validate(ctx, []byte("anything"), map[string]any{})
		require.NoError(t, err)
		assert.True(t, res.Valid)
	})
}

func TestConfigFormatValidator(t *testing.T) {
	t.Parallel()

	v := &validate.ConfigFormatValidator{}
	ctx := context.Background()

	tests := []struct {
		name      string
		filename  string
		data      string
		valid     bool
		format    string
		errorPart string
	}{
		{"valid json", "app.json", `{"port": 8080, "debug": true}`, true, "json", ""},
		{"invalid json", "app.json", `{"port":`, false, "", "Invalid JSON"},
		{"valid yaml", "app.yaml", "port: 8080\ndebug: true\n", true, "yaml", ""},
		{"valid yml", "app.yml", "name: core\n", true, "yaml", ""},
		{"invalid yaml", "app.yaml", "port: [8080\n", false, "", "Invalid YAML"},
		{"valid ini", "app.ini", "[server]\nport = 8080\n", true, "ini", ""},
		{"invalid ini", "app.ini", "[unclosed\n", false, "", "Invalid INI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := v.Validate(ctx, []byte(tt.data), map[string]any{"filename": tt.filename})
			require.NoError(t, err)

			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Equal(t, tt.format, res.Report["format"])
			} else {
				require.NotEmpty(t, res.Errors)
				assert.Contains(t, res.Errors[0], tt.errorPart)
			}
		})
	}

	t.Run("unknown extension warns", func(t *testing.T) {
		t.Parallel()

		res, err := v.Validate(ctx, []byte("whatever"), map[string]any{"filename": "notes.txt"})
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, "unknown", res.Report["format"])
		require.Len(t, res.Warnings, 1)
	})

	t.Run("json keys reported", func(t *testing.T) {
		t.Parallel()

		res, err := v.Validate(ctx, []byte(`{"a": 1, "b": 2}`), map[string]any{"filename": "x.json"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, res.Report["keys"])
	})
}
