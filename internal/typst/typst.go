package typst

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
)

// Compiler shells out to the typst binary to render documents. Templates
// receive their data as a JSON file passed through --input path=<file>,
// decoded inside the template with json(sys.inputs.path).
type Compiler interface {
	CompileTemplate(templateName string, data []byte, outputName string) ([]byte, error)
}

type compiler struct {
	logger      *logger.Logger
	binaryPath  string
	fontDir     string
	templateDir string
	outputDir   string
}

// NewCompiler creates a Typst compiler with explicit paths
func NewCompiler(logger *logger.Logger, binaryPath, fontDir, templateDir, outputDir string) Compiler {
	return &compiler{
		logger:      logger,
		binaryPath:  binaryPath,
		fontDir:     fontDir,
		templateDir: templateDir,
		outputDir:   outputDir,
	}
}

// DefaultCompiler creates a compiler with default settings
func DefaultCompiler(logger *logger.Logger) Compiler {
	return &compiler{
		logger:      logger,
		binaryPath:  "typst",
		fontDir:     "assets/fonts",
		templateDir: "internal/typst/templates",
		outputDir:   os.TempDir(),
	}
}

// CompileTemplate renders a named template with the given JSON payload and
// returns the produced PDF bytes. Intermediate files are removed.
func (c *compiler) CompileTemplate(templateName string, data []byte, outputName string) ([]byte, error) {
	templatePath := filepath.Join(c.templateDir, templateName)
	if _, err := os.Stat(templatePath); os.IsNotExist(err) {
		return nil, ierr.WithError(err).
			WithMessagef("template not found: %s", templatePath).
			WithHint("Document template is missing from the deployment").
			Mark(ierr.ErrSystem)
	}

	jsonPath := filepath.Join(c.outputDir, fmt.Sprintf("typst-%d.json", time.Now().UnixNano()))
	if err := os.WriteFile(jsonPath, data, 0600); err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to write template data file").
			Mark(ierr.ErrSystem)
	}
	defer os.Remove(jsonPath)

	if outputName == "" {
		outputName = fmt.Sprintf("typst-%d.pdf", time.Now().UnixNano())
	}
	outputPath := filepath.Join(c.outputDir, outputName)
	defer os.Remove(outputPath)

	args := []string{"compile", "--root", "/"}
	if c.fontDir != "" {
		args = append(args, "--font-path", c.fontDir)
	}
	args = append(args, "--input", fmt.Sprintf("path=%s", jsonPath))
	args = append(args, templatePath, outputPath)

	cmd := exec.Command(c.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, ierr.WithError(err).
			WithMessage("typst compilation failed").
			WithReportableDetails(map[string]any{
				"template": templateName,
				"stderr":   stderr.String(),
			}).
			Mark(ierr.ErrSystem)
	}

	pdfBytes, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to read compiled document").
			Mark(ierr.ErrSystem)
	}

	return pdfBytes, nil
}
