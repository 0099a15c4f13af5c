package pdfops

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

// Merge concatenates the input PDFs into one output file, in the order
// given.
func Merge(inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("merge: no input files")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	if err := api.MergeCreateFile(inputs, output, false, nil); err != nil {
		return fmt.Errorf("merge %d files into %s: %w", len(inputs), output, err)
	}
	log.Info().Int("inputs", len(inputs)).Str("output", output).Msg("merged pdfs")
	return nil
}

// Split writes one single-page PDF per source page into outDir.
func Split(input, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("split: %w", err)
	}
	if err := api.SplitFile(input, outDir, 1, nil); err != nil {
		return fmt.Errorf("split %s: %w", input, err)
	}
	return nil
}

// Encrypt writes an AES-256 encrypted copy of input. The same password is
// used for user and owner access.
func Encrypt(input, output, password string) error {
	conf := model.NewAESConfiguration(password, password, 256)
	if err := api.EncryptFile(input, output, conf); err != nil {
		return fmt.Errorf("encrypt %s: %w", input, err)
	}
	return nil
}

// Decrypt removes encryption from input given its password.
func Decrypt(input, output, password string) error {
	conf := model.NewAESConfiguration(password, password, 256)
	if err := api.DecryptFile(input, output, conf); err != nil {
		return fmt.Errorf("decrypt %s: %w", input, err)
	}
	return nil
}

// Watermark stamps the given text diagonally across every page.
func Watermark(input, output, text string) error {
	wm, err := api.TextWatermark(text, "scale:0.6, op:.35, rot:45", true, false, 0)
	if err != nil {
		return fmt.Errorf("watermark definition: %w", err)
	}
	if err := api.AddWatermarksFile(input, output, nil, wm, nil); err != nil {
		return fmt.Errorf("watermark %s: %w", input, err)
	}
	return nil
}

// ImagesToPDF wraps one or more images into a PDF, one page per image.
func ImagesToPDF(images []string, output string) error {
	if len(images) == 0 {
		return fmt.Errorf("images-to-pdf: no input images")
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("images-to-pdf: %w", err)
	}
	if err := api.ImportImagesFile(images, output, nil, nil); err != nil {
		return fmt.Errorf("import %d images into %s: %w", len(images), output, err)
	}
	return nil
}

// PageCount returns the number of pages of a PDF.
func PageCount(input string) (int, error) {
	n, err := api.PageCountFile(input)
	if err != nil {
		return 0, fmt.Errorf("page count of %s: %w", input, err)
	}
	return n, nil
}
