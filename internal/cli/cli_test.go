package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/store"
	"wc-salesforce-sync/internal/sync"
)

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	cmd.SetArgs([]string{"--format", "yaml", "sync", "12"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	for _, path := range [][]string{
		{"sync"},
		{"authorize-url"},
		{"exchange"},
		{"relationships", "list"},
		{"relationships", "activate"},
		{"relationships", "deactivate"},
		{"objects"},
		{"products"},
	} {
		found, _, err := cmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestSyncCommand_InvalidID(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	cmd.SetArgs([]string{"sync", "abc"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	assert.EqualError(t, err, `invalid id "abc"`)
}

func TestRootOptions_CloseAfterFailedCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  workers: 0\n"), 0o600))

	opts := &RootOptions{}
	cmd := NewRootCommand(opts)
	cmd.SetArgs([]string{"--config", path, "sync", "12"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Nil(t, opts.app)
	assert.NotPanics(t, opts.Close)
	assert.NotPanics(t, opts.Close)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "20"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 20}, ids)

	_, err = parseIDs([]string{"1", "-2"})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, sync.Result{
		RunID:   "run-1",
		OrderID: 7,
		Errors:  []string{"No defined relationships."},
	})
	assert.Equal(t, "order 7: failed (run run-1)\n  1. No defined relationships.\n", buf.String())
}

func TestPrintRelationships(t *testing.T) {
	var buf bytes.Buffer
	printRelationships(&buf, []*store.Relationship{
		{
			ID: 3, FromObject: "Order", ToObject: "Contact", Active: true,
			FieldMappings:   []store.FieldMapping{{To: "Email"}, {To: "LastName"}},
			RequiredObjects: []store.RequiredObject{{Name: "Account", ID: "AccountId"}},
		},
		{ID: 4, FromObject: "Order", ToObject: "Account", FieldMappings: []store.FieldMapping{{To: "Name"}}},
	})
	assert.Equal(t,
		"3\tOrder -> Contact\tactive\t2 field(s)\trequires Account\n"+
			"4\tOrder -> Account\tinactive\t1 field(s)\n",
		buf.String())
}

func TestOptionsPrint(t *testing.T) {
	opts := &RootOptions{Format: "json"}
	var buf bytes.Buffer
	require.NoError(t, opts.print(&buf, map[string]string{"url": ""}, nil))
	assert.JSONEq(t, `{"url":""}`, buf.String())

	opts.Format = "text"
	buf.Reset()
	require.NoError(t, opts.print(&buf, nil, func(w io.Writer) { w.Write([]byte("plain\n")) }))
	assert.Equal(t, "plain\n", buf.String())
}
