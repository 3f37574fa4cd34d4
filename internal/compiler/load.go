package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/gdplbb/internal/gdp"
)

// LoadError represents an error that occurred while loading a model directory.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available

	Err error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying compile or model error, if any.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoModel     = "E007" // No model struct in the instance

	// Model document errors
	ErrCodeInvalidVar         = "E101" // Bad variable declaration
	ErrCodeInvalidObjective   = "E102" // Bad objective
	ErrCodeInvalidConstraint  = "E103" // Bad global constraint
	ErrCodeInvalidDisjunction = "E104" // Bad disjunction or disjunct
	ErrCodeInvalidType        = "E105" // CUE type error
)

// LoadModel loads every .cue file of dir as one CUE instance and compiles
// its model struct.
func LoadModel(dir string) (*gdp.Model, error) {
	value, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	modelVal := value.LookupPath(cue.ParsePath("model"))
	if !modelVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoModel, Message: fmt.Sprintf("no model struct found in %s", dir)}
	}

	m, err := CompileModel(modelVal)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return m, nil
}

// LoadDir builds the CUE instance of dir.
func LoadDir(dir string) (cue.Value, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model directory not found: %s", dir)}
	}
	if err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model directory: %v", err)}
	}
	if !info.IsDir() {
		return cue.Value{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err), Err: inst.Err}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Validate(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err), Err: err}
	}
	return value, nil
}

// FindCUEFiles returns the .cue files directly inside dir, sorted.
// Subdirectories are separate CUE packages and are not scanned.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Error(),
			Pos:     compileErr.Pos,
			Err:     err,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	head, _, _ := strings.Cut(field, ".")
	switch head {
	case "var":
		return ErrCodeInvalidVar
	case "objective":
		return ErrCodeInvalidObjective
	case "constraint":
		return ErrCodeInvalidConstraint
	case "disjunction":
		return ErrCodeInvalidDisjunction
	case "cue":
		return ErrCodeInvalidType
	default:
		return ErrCodeGeneric
	}
}
