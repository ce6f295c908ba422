package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachbev/beachbev-site/internal/errors"
	"github.com/beachbev/beachbev-site/pkg/packets"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&globals{})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestSchemaListsKeys(t *testing.T) {
	out, err := execute(t, "schema", "E1", "D0")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "ProtobufPackets.PackE1")
	assert.Contains(t, lines[1], "acceptedEIDs:repeated uint64")
	assert.Contains(t, lines[2], "ProtobufPackets.PackD0")
}

func TestSchemaUnknownKey(t *testing.T) {
	_, err := execute(t, "schema", "Z9")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeUnknownKey, e.Code)
}

func TestSchemaRoundTripsThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packets.pb")
	_, err := execute(t, "schema", "--out", path)
	require.NoError(t, err)

	reg, err := loadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, packets.Registry().Keys(), reg.Keys())

	out, err := execute(t, "schema", "--file", path, "B5")
	require.NoError(t, err)
	assert.Contains(t, out, "ProtobufPackets.PackB5")
}

func TestClientRequiresURL(t *testing.T) {
	t.Setenv("BEACHBEV_CLIENT_URL", "")
	_, err := execute(t, "client", "--name", "ann", "--password", "pw")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeMissingFlag, e.Code)
}

func TestBadLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "schema")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeConfigValue, e.Code)
}

func TestClientAcceptFlag(t *testing.T) {
	cmd := clientCmd(&globals{})
	require.NoError(t, cmd.ParseFlags([]string{"--accept=12,14"}))

	got, err := cmd.Flags().GetUintSlice("accept")
	require.NoError(t, err)
	assert.Equal(t, []uint{12, 14}, got)

	f := &clientFlags{accept: got}
	assert.Equal(t, []uint64{12, 14}, f.acceptedIDs())

	t.Setenv("BEACHBEV_CLIENT_URL", "")
	_, err = execute(t, "client", "--name", "boss", "--password", "pw", "--accept=12,14")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeMissingFlag, e.Code)
}

func TestExplainListsCodes(t *testing.T) {
	out, err := execute(t, "explain")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(errors.Codes())+1)
	assert.Contains(t, lines[0], "CODE")
	assert.Contains(t, out, errors.CodeGaveUp)
	assert.Contains(t, out, "Connection gave up")
}

func TestExplainOneCode(t *testing.T) {
	out, err := execute(t, "explain", errors.CodeDial)
	require.NoError(t, err)
	assert.Contains(t, out, "Packet server unreachable")
	assert.Contains(t, out, "client.url")

	_, err = execute(t, "explain", "B999")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeInvalidArgument, e.Code)
}

func TestBadErrorFormat(t *testing.T) {
	_, err := execute(t, "--error-format", "xml", "schema")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeInvalidArgument, e.Code)
}

func TestUploadRejectsDirectory(t *testing.T) {
	err := uploadFile(context.Background(), nil, t.TempDir())
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CategoryCLI, e.Category)
	assert.Empty(t, e.Code)
	assert.Contains(t, e.Message, "is a directory")
}
