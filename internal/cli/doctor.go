package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheBase/TheBase/internal/cliconfig"
)

var (
	doctorFix                  bool
	doctorGenerateIngestSecret bool
	doctorOutput               string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, store and ingestion setup",
	Long: `Checks the config file, the env files, the store connection, the ingest
shared secret, gateway exposure and the Kafka and Slack integrations.

Exits non-zero when a check fails; warnings do not fail.`,
	Example: `  thebase doctor
  thebase doctor --fix --generate-ingest-secret
  thebase doctor -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorOutput != "text" && doctorOutput != "json" {
			return fmt.Errorf("unknown output %q (expected text or json)", doctorOutput)
		}
		report, err := cliconfig.RunDoctorWithOptions(cliconfig.DoctorOptions{
			Fix:                  doctorFix,
			GenerateIngestSecret: doctorGenerateIngestSecret,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if doctorOutput == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			writeDoctorReport(out, report)
		}
		if report.HasFailures() {
			return fmt.Errorf("doctor found failing checks")
		}
		return nil
	},
}

func writeDoctorReport(w io.Writer, report cliconfig.DoctorReport) {
	var pass, warn, fail int
	for _, check := range report.Checks {
		var mark string
		switch check.Status {
		case cliconfig.DoctorFail:
			mark = color.RedString("FAIL")
			fail++
		case cliconfig.DoctorWarn:
			mark = color.YellowString("WARN")
			warn++
		default:
			mark = color.GreenString("PASS")
			pass++
		}
		fmt.Fprintf(w, "%s  %-22s %s\n", mark, check.Name, check.Message)
	}
	fmt.Fprintf(w, "\n%d passed, %d warning(s), %d failed\n", pass, warn, fail)
}

func init() {
	f := doctorCmd.Flags()
	f.BoolVar(&doctorFix, "fix", false, "Merge .env files from the working dir and ~/.thebase into ~/.config/thebase/env")
	f.BoolVar(&doctorGenerateIngestSecret, "generate-ingest-secret", false, "Generate a new X-TheBase-Secret value and save it to the config file")
	f.StringVarP(&doctorOutput, "output", "o", "text", "Output format: text or json")
	rootCmd.AddCommand(doctorCmd)
}
