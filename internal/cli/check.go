package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gatewarden/internal/config"
	"github.com/ppiankov/gatewarden/internal/directory"
)

var (
	checkConfig string
	checkFormat string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkConfig, "config", "c", "", "Path to config YAML")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and directory files",
	Long: "Loads the config, contact list, and employee roster, and reports\n" +
		"what the daemon would run with. Exit code 0 when everything loads,\n" +
		"1 otherwise. Use before restarting the checkpoint.",
	RunE: runCheck,
}

type checkReport struct {
	Listen      string `json:"listen"`
	APIURL      string `json:"api_url"`
	Contacts    int    `json:"contacts"`
	Employees   bool   `json:"employees_file"`
	SMTPEnabled bool   `json:"smtp_enabled"`
	Webhooks    int    `json:"webhooks"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(checkConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dir, err := directory.Load(cfg.Directory.ContactsPath, cfg.Directory.EmployeesPath)
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}

	employeesPresent := false
	if cfg.Directory.EmployeesPath != "" {
		if _, err := os.Stat(cfg.Directory.EmployeesPath); err == nil {
			employeesPresent = true
		}
	}

	report := checkReport{
		Listen:      cfg.Listen,
		APIURL:      cfg.LLM.APIURL,
		Contacts:    len(dir.ContactNames()),
		Employees:   employeesPresent,
		SMTPEnabled: cfg.Notify.SMTP.Host != "" && cfg.SMTPPassword() != "",
		Webhooks:    len(cfg.Notify.Webhooks),
	}

	if checkFormat == "json" {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("listen:       %s\n", report.Listen)
	fmt.Printf("model api:    %s\n", report.APIURL)
	fmt.Printf("contacts:     %d\n", report.Contacts)
	fmt.Printf("employees:    %v\n", report.Employees)
	fmt.Printf("smtp:         %v\n", report.SMTPEnabled)
	fmt.Printf("webhooks:     %d\n", report.Webhooks)
	fmt.Println("OK")
	return nil
}
