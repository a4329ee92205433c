package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"houzel-server/internal/domain/scoring"
	"houzel-server/internal/infrastructure/logger"
	"houzel-server/internal/infrastructure/metrics"
)

const DefaultTimeout = 20 * time.Second

// CLICompiler shells out to the legacy scoring tool. The tool is a
// cooperating module from the same codebase, so it runs inside the service's
// base directory with that directory on its import path. It must print
// exactly one JSON object on stdout and exit zero.
type CLICompiler struct {
	pythonBin string
	baseDir   string
	timeout   time.Duration
	log       zerolog.Logger
}

var _ scoring.Compiler = (*CLICompiler)(nil)

// NewCLICompiler creates a compiler gateway. Zero timeout means the default
// of 20 seconds.
func NewCLICompiler(pythonBin, baseDir string, timeout time.Duration) *CLICompiler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CLICompiler{
		pythonBin: pythonBin,
		baseDir:   baseDir,
		timeout:   timeout,
		log:       logger.Component("compiler"),
	}
}

// Compile invokes the scoring tool and parses its directive. Every failure
// mode, timeout, non-zero exit, unparsable output, is reported as
// scoring.ErrUnavailable with the raw output attached for diagnostics.
// Retry policy belongs to the caller.
func (c *CLICompiler) Compile(ctx context.Context, instruction string, essayText string, imageData string) (*scoring.Directive, error) {
	args := []string{"-m", "compiler.cli", "--user_input", instruction}
	if essayText != "" {
		args = append(args, "--redacao_texto", essayText)
	}
	if imageData != "" {
		args = append(args, "--image_data", imageData)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.pythonBin, args...)
	cmd.Dir = c.baseDir
	cmd.Env = append(os.Environ(),
		"PYTHONIOENCODING=utf-8",
		"PYTHONPATH="+absBaseDir(c.baseDir),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	metrics.CompilerDuration.Observe(elapsed.Seconds())

	if ctx.Err() == context.DeadlineExceeded {
		c.log.Warn().Dur("elapsed", elapsed).Msg("scoring tool timed out")
		return nil, fmt.Errorf("%w: timed out after %s", scoring.ErrUnavailable, c.timeout)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("stderr", stderr.String()).Msg("scoring tool failed")
		return nil, fmt.Errorf("%w: %v | output: %s", scoring.ErrUnavailable, err, strings.TrimSpace(stderr.String()))
	}

	output := strings.TrimSpace(stdout.String())
	var directive scoring.Directive
	if err := json.Unmarshal([]byte(output), &directive); err != nil {
		c.log.Warn().Err(err).Str("output", output).Msg("scoring tool produced unparsable output")
		return nil, fmt.Errorf("%w: decode directive: %v | output: %s", scoring.ErrUnavailable, err, output)
	}

	c.log.Debug().Dur("elapsed", elapsed).Msg("scoring tool completed")
	return &directive, nil
}

func absBaseDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
