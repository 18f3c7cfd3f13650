package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/export"
)

func newRunFlagsCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    reportFlags
		wantErr string
	}{
		{
			name: "defaults",
			want: reportFlags{format: export.FormatJSON},
		},
		{
			name: "yaml with tables",
			args: []string{"--format", "yaml", "--tables", "risk,courses"},
			want: reportFlags{format: export.FormatYAML, tables: []string{"risk", "courses"}},
		},
		{
			name: "csv with out",
			args: []string{"--format", "csv", "--out", "reports", "--source", "csv", "--csv-dir", "data"},
			want: reportFlags{format: export.FormatCSV, out: "reports", source: "csv", csvDir: "data"},
		},
		{
			name:    "csv without out",
			args:    []string{"--format", "csv"},
			wantErr: "requires --out",
		},
		{
			name:    "unknown format",
			args:    []string{"--format", "xml"},
			wantErr: "unsupported format",
		},
		{
			name:    "unknown table",
			args:    []string{"--tables", "grades"},
			wantErr: "unknown table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(newRunFlagsCmd(t, tt.args...))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.want.tables == nil {
				tt.want.tables = []string{}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := &config.Config{
		Source:   config.Source{Kind: config.SourceMoodle, CSVDir: "./data"},
		Consumer: config.Consumer{BatchSizeMax: 100, ReceiveMaxMessages: 10, WaitTimeSec: 20},
	}

	require.NoError(t, applyFlags(cfg, reportFlags{source: "CSV", csvDir: "/tmp/export"}))
	assert.Equal(t, config.SourceCSV, cfg.Source.Kind)
	assert.Equal(t, "/tmp/export", cfg.Source.CSVDir)

	err := applyFlags(cfg, reportFlags{source: "composite"})
	assert.Error(t, err)

	err = applyFlags(cfg, reportFlags{profile: "/does/not/exist.yaml"})
	assert.Error(t, err)
}

func TestSelectTables(t *testing.T) {
	all := []analytics.Table{{Name: "risk"}, {Name: "courses"}, {Name: "quiz"}}

	assert.Equal(t, all, selectTables(all, nil))

	got := selectTables(all, []string{"quiz", "risk"})
	require.Len(t, got, 2)
	assert.Equal(t, "risk", got[0].Name)
	assert.Equal(t, "quiz", got[1].Name)
}

func TestTablesCommand(t *testing.T) {
	var buf bytes.Buffer
	tablesCmd.SetOut(&buf)
	defer tablesCmd.SetOut(nil)

	require.NoError(t, tablesCmd.RunE(tablesCmd, nil))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, len(analytics.TableNames))
	assert.Equal(t, analytics.TableEngagement, string(lines[0]))
}
