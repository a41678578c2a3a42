package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mailtriage/config"
	"mailtriage/internal/classify"
	"mailtriage/internal/model"
	"mailtriage/internal/service"
)

var (
	// Flags for classify command
	classifyBody      string
	classifySender    string
	classifyBuildings string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <subject>...",
	Short: "Show how subjects would be classified and routed",
	Long: `Classify one or more subjects offline with the configured buildings list and print
the routing decision. Nothing is read from or written to the mailbox.

Examples:
  agent classify "Fattura Edificio A - Ottobre"
  agent classify "Guasto ascensore" --body "scala B, Condominio Rossi"
  agent classify "Preventivo lavori" --buildings ./buildings.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: classifySubjects,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyBody, "body", "b", "", "Body preview used for every subject")
	classifyCmd.Flags().StringVar(&classifySender, "from", "", "Sender address")
	classifyCmd.Flags().StringVar(&classifyBuildings, "buildings", "", "Buildings file (default: buildings_file from config)")
}

func classifySubjects(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		if classifyBuildings == "" {
			return err
		}
		defaults := config.Defaults()
		cfg = &defaults
	}
	path := classifyBuildings
	if path == "" {
		path = cfg.BuildingsFile
	}

	buildings := classify.LoadBuildings(path, zap.NewNop())
	if len(buildings) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: no buildings loaded from %s, every email will need review\n", path)
	}
	classifier := classify.NewClassifier(buildings)

	tbl := newTable(cmd.OutOrStdout(), "SUBJECT", "BUILDING", "CATEGORY", "CONFIDENCE", "DECISION", "TARGET")
	for _, subject := range args {
		if strings.TrimSpace(subject) == "" {
			return errors.New("subject must not be empty")
		}
		cls := classifier.Classify(subject, classifyBody, classifySender)
		decision, target := describe(cls, cfg.Folders.Properties)
		tbl.AddRow(subject, orDash(cls.Building), cls.Category.Label(), fmt.Sprintf("%.2f", cls.Confidence), decision, target)
	}
	tbl.Print()
	return nil
}

func describe(cls model.Classification, properties string) (decision, target string) {
	if !service.ShouldAutoRoute(cls) {
		return "review", "pending queue"
	}
	target = properties + "/" + cls.Building + "/" + cls.Category.Label()
	if cls.Category.Actionable() {
		return "auto + task", target
	}
	return "auto", target
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
