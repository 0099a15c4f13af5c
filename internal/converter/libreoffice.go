package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LibreOffice converts office documents to PDF by shelling out to a
// headless libreoffice binary. Each conversion runs with its own profile
// directory so concurrent invocations never fight over the user profile.
type LibreOffice struct {
	binary string
}

func NewLibreOffice() *LibreOffice {
	return &LibreOffice{binary: "libreoffice"}
}

// Available reports whether the libreoffice binary is on PATH.
func (l *LibreOffice) Available() bool {
	_, err := exec.LookPath(l.binary)
	return err == nil
}

// ErrPasswordProtected marks a document the converter cannot open.
var ErrPasswordProtected = fmt.Errorf("document is password protected")

// ConvertToPDF converts one document and returns the path of the produced
// PDF inside outDir. The output carries the input's base name.
func (l *LibreOffice) ConvertToPDF(ctx context.Context, input, outDir string) (string, error) {
	start := time.Now()

	info, err := os.Stat(input)
	if err != nil {
		return "", fmt.Errorf("input not readable: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return "", fmt.Errorf("input %s is not a regular non-empty file", input)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	profileDir := filepath.Join(os.TempDir(), "lo_profile_"+uuid.New().String())
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return "", fmt.Errorf("create profile dir: %w", err)
	}
	defer os.RemoveAll(profileDir)

	cmd := exec.CommandContext(ctx, l.binary,
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		input,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if looksProtected(string(out)) {
			return "", ErrPasswordProtected
		}
		return "", fmt.Errorf("libreoffice conversion failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	base := filepath.Base(input)
	produced := filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("conversion produced no output: %w", err)
	}

	log.Info().Str("input", input).Str("output", produced).Dur("elapsed", time.Since(start)).Msg("converted to pdf")
	return produced, nil
}

func looksProtected(output string) bool {
	s := strings.ToLower(output)
	return strings.Contains(s, "password") || strings.Contains(s, "encrypted") || strings.Contains(s, "protected")
}
