// Package delivery wraps the external document-store delivery tool as a
// binary pass/fail boundary. The engine never speaks the destination wire
// protocol; it hands the tool a payload path plus target parameters and maps
// the exit status onto a run ledger transition.
package delivery

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/damian-dev1/freight-matrix-hn/config"
	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/logger"
)

// maxDiagnosticLen caps tool output carried into run error messages.
const maxDiagnosticLen = 500

// Target identifies where a payload is delivered. Opaque to the engine;
// assembled from config defaults and the vendor profile.
type Target struct {
	ConnectionString string
	Database         string
	Container        string
	PartitionKeyPath string
	WriteMode        string
	AllowPartial     bool
}

// Sink is the delivery operation boundary. Implementations must treat the
// call as all-or-nothing: a nil return means the payload was delivered.
type Sink interface {
	Deliver(ctx context.Context, payloadPath string, target Target) error
}

// ToolInvoker implements Sink by running the external delivery executable
// with a generated settings file.
type ToolInvoker struct {
	ToolPath    string
	SettingsDir string
	Timeout     time.Duration
}

// NewToolInvoker creates an invoker for the delivery tool at toolPath.
// Settings files are written to settingsDir (the payload's directory when
// empty). A non-positive timeout defaults to five minutes.
func NewToolInvoker(toolPath, settingsDir string, timeout time.Duration) *ToolInvoker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ToolInvoker{ToolPath: toolPath, SettingsDir: settingsDir, Timeout: timeout}
}

// Settings file shape expected by the delivery tool.
type toolSettings struct {
	Source         string             `json:"Source"`
	Sink           string             `json:"Sink"`
	SourceSettings sourceSettings     `json:"SourceSettings"`
	SinkSettings   targetSinkSettings `json:"SinkSettings"`
}

type sourceSettings struct {
	FilePath string `json:"FilePath"`
}

type targetSinkSettings struct {
	ConnectionString   string `json:"ConnectionString"`
	Database           string `json:"Database"`
	Container          string `json:"Container"`
	PartitionKeyPath   string `json:"PartitionKeyPath"`
	WriteMode          string `json:"WriteMode"`
	AllowPartialUpload bool   `json:"AllowPartialUpload"`
}

// Deliver runs one bounded delivery attempt. A non-zero exit surfaces the
// tool's output (truncated) as the failure diagnostic; hitting the timeout
// surfaces an error wrapping errors.ErrTimeout so callers can distinguish
// the two failure modes.
func (inv *ToolInvoker) Deliver(ctx context.Context, payloadPath string, target Target) error {
	settingsPath, err := inv.writeSettings(payloadPath, target)
	if err != nil {
		return err
	}
	defer os.Remove(settingsPath)

	attemptCtx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	logger.Infow("Invoking delivery tool",
		"tool", inv.ToolPath,
		"payload", payloadPath,
		"database", target.Database,
		"container", target.Container,
		"timeout", inv.Timeout,
	)

	cmd := exec.CommandContext(attemptCtx, inv.ToolPath, "-s", settingsPath)
	output, err := cmd.CombinedOutput()

	if attemptCtx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(errors.ErrTimeout, "delivery timed out after %s", inv.Timeout)
	}
	if err != nil {
		return errors.Newf("delivery tool failed: %s: %s", err, truncate(string(output)))
	}
	return nil
}

func (inv *ToolInvoker) writeSettings(payloadPath string, target Target) (string, error) {
	dir := inv.SettingsDir
	if dir == "" {
		dir = filepath.Dir(payloadPath)
	}
	if err := os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
		return "", errors.Wrap(err, "failed to create settings directory")
	}

	settings := toolSettings{
		Source: "json",
		Sink:   "cosmos-nosql",
		SourceSettings: sourceSettings{
			FilePath: payloadPath,
		},
		SinkSettings: targetSinkSettings{
			ConnectionString:   target.ConnectionString,
			Database:           target.Database,
			Container:          target.Container,
			PartitionKeyPath:   target.PartitionKeyPath,
			WriteMode:          target.WriteMode,
			AllowPartialUpload: target.AllowPartial,
		},
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal delivery settings")
	}

	// One settings file per attempt so concurrent attempts never clobber
	path := filepath.Join(dir, "migrationsettings_"+uuid.NewString()+".json")
	if err := os.WriteFile(path, data, config.DefaultFilePermissions); err != nil {
		return "", errors.Wrap(err, "failed to write delivery settings")
	}
	return path, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDiagnosticLen {
		return s
	}
	return s[:maxDiagnosticLen] + "..."
}
