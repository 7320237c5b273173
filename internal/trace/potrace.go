package trace

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
)

// DefaultPotracePath is the binary looked up on PATH when none is configured.
const DefaultPotracePath = "potrace"

// Potrace traces rasters with the potrace command-line tool.
//
// The raster is streamed to potrace's stdin as a BMP and the SVG is read back
// from stdout, so no temporary files are created.
type Potrace struct {
	path string
	log  logrus.FieldLogger
}

// NewPotrace creates an adapter for the binary at path (DefaultPotracePath
// when empty).
func NewPotrace(path string, log logrus.FieldLogger) *Potrace {
	if path == "" {
		path = DefaultPotracePath
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Potrace{path: path, log: log}
}

// Name returns the tool name used in errors.
func (p *Potrace) Name() string {
	return "potrace"
}

// Available reports whether the potrace binary can be resolved.
func (p *Potrace) Available() bool {
	_, err := exec.LookPath(p.path)
	return err == nil
}

// Trace implements Tracer.
func (p *Potrace) Trace(ctx context.Context, img image.Image, params Params) (string, error) {
	var in bytes.Buffer
	if err := bmp.Encode(&in, img); err != nil {
		return "", &Error{Tool: p.Name(), Op: "encode", Err: err}
	}

	args := Args(params)
	cmd := exec.CommandContext(ctx, p.path, args...)
	cmd.Stdin = &in
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.log.WithFields(logrus.Fields{
		"args":        strings.Join(args, " "),
		"input_bytes": in.Len(),
	}).Debug("running potrace")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", &Error{Tool: p.Name(), Op: "trace", Err: err}
	}
	return stdout.String(), nil
}

// Args builds the potrace command line for params. Input is read from stdin
// and the SVG is written to stdout.
func Args(params Params) []string {
	args := []string{
		"--svg",
		"--output", "-",
		"--turdsize", strconv.Itoa(params.TurdSize),
		"--opttolerance", strconv.FormatFloat(params.OptTolerance, 'f', -1, 64),
		"--blacklevel", strconv.FormatFloat(float64(params.Threshold)/255, 'f', 4, 64),
	}
	if params.TurnPolicy != "" {
		args = append(args, "--turnpolicy", string(params.TurnPolicy))
	}
	if params.LineColor != "" {
		args = append(args, "--color", params.LineColor)
	}
	if params.Invert {
		args = append(args, "--invert")
	}
	return args
}
