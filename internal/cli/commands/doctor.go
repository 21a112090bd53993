package commands

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/ajanta/internal/cli/config"
	"github.com/leapstack-labs/ajanta/internal/cli/output"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
	"github.com/spf13/cobra"
)

// lookPath resolves a tool on PATH. Tests replace it.
var lookPath = toolchain.LookPath

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external build tools are installed",
		Long: `Check that the compiler, linker and transformer named in the configuration
can be found on PATH.

The single-call compiler used by cc-build is optional. A missing optional tool
is reported as a warning; a missing required tool makes doctor fail.`,
		Example: `  ajanta doctor
  ajanta doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// ToolCheck is the result of looking up one tool.
type ToolCheck struct {
	Group    string `json:"group"`
	Role     string `json:"role"`
	Tool     string `json:"tool"`
	Path     string `json:"path,omitempty"`
	Required bool   `json:"required"`
	Status   string `json:"status"` // "ok", "missing"
	Error    string `json:"error,omitempty"`
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ConfigFile string      `json:"config_file,omitempty"`
	Checks     []ToolCheck `json:"checks"`
	Missing    int         `json:"missing_required"`
}

func runDoctor(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	out := diagnose(cc.Cfg)
	out.ConfigFile = config.GetConfigFileUsed()

	var err error
	if r.EffectiveMode() == output.ModeJSON {
		err = r.JSON(out)
	} else {
		renderDoctorText(r, out)
	}
	if err != nil {
		return err
	}
	if out.Missing > 0 {
		return fmt.Errorf("%d required tool(s) not found", out.Missing)
	}
	return nil
}

func diagnose(cfg *config.Config) *DoctorOutput {
	type want struct {
		group, role, tool string
		required          bool
	}
	wants := []want{
		{"toolchain", "compiler", cfg.Toolchain.Compiler, true},
		{"toolchain", "linker", cfg.Toolchain.Linker, true},
		{"transformer", "transformer", cfg.Transformer.Command, true},
		{"toolchain", "single-call compiler", cfg.Toolchain.CCCompiler, false},
	}
	if cfg.Toolchain.CXXCompiler != "" {
		wants = append(wants, want{"toolchain", "c++ compiler", cfg.Toolchain.CXXCompiler, true})
	}

	out := &DoctorOutput{}
	for _, w := range wants {
		check := ToolCheck{Group: w.group, Role: w.role, Tool: w.tool, Required: w.required, Status: "ok"}
		path, err := lookPath(w.tool)
		if err != nil {
			check.Status = "missing"
			check.Error = err.Error()
			if w.required {
				out.Missing++
			}
		} else {
			check.Path = path
		}
		out.Checks = append(out.Checks, check)
	}
	return out
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println(styles.Header1.Render("ajanta doctor"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 40)))
	if out.ConfigFile != "" {
		r.KeyValue("config", out.ConfigFile)
	} else {
		r.KeyValue("config", styles.Muted.Render("defaults (no ajanta.yaml found)"))
	}
	r.Println("")

	titleCaser := cases.Title(language.English)
	currentGroup := ""
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render(titleCaser.String(currentGroup)))
		}
		label := fmt.Sprintf("%s (%s)", titleCaser.String(check.Role), check.Tool)
		switch {
		case check.Status == "ok":
			r.StatusLine("ok", label, check.Path)
		case check.Required:
			r.StatusLine("failed", label, "not found on PATH")
		default:
			r.Println(styles.Warning.Render("!") + " " + label + ": " + styles.Muted.Render("not found (optional)"))
		}
	}
	r.Println("")

	if out.Missing == 0 {
		r.Success("all required tools found")
	}
}
