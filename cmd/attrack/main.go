package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"attrack/internal/app"
	"attrack/internal/attendance"
	"attrack/internal/config"
	"attrack/internal/prefs"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "CheckIn", "GetToday").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "attrack",
	Short: "Attendance tracking client",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init SERVER_URL",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(args[0], defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		// Generate the identity that seals session tokens at rest.
		sealer := prefs.NewSealer(cfg.IdentityPath)
		if err := sealer.Setup(); err != nil {
			return fmt.Errorf("failed to set up token identity: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Server:   %s\n", cfg.ServerURL)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Server:   %s\n", cfg.ServerURL)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Cache:    %s\n", cfg.Database.Type)
		for _, a := range cfg.Archives {
			fmt.Printf("Archive:  %s (%s)\n", a.Name, a.Type)
		}
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Log in and store the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}

		a, err := newApp("Login")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Login(cmd.Context(), args[0], string(password)); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Printf("Logged in as %s\n", args[0])
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear local data",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Logout")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Logout(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Logged out.")
		return nil
	},
}

// today command
var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "View today's attendance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetToday")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Today(cmd.Context())
		if err != nil {
			return err
		}
		return printRecordResult(res)
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "View a single attendance record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetDetail")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Detail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printRecordResult(res)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View attendance history",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.History(cmd.Context(), lastDays(days))
		if err != nil {
			return err
		}
		if res.State == attendance.StateError {
			return res.Err
		}

		if res.Stale {
			fmt.Println("(offline, showing cached history)")
		}
		if len(res.Value) == 0 {
			fmt.Println("No records.")
			return nil
		}
		for _, rec := range res.Value {
			fmt.Println(formatLine(rec))
		}
		return nil
	},
}

// in command
var inCmd = &cobra.Command{
	Use:   "in LAT LNG",
	Short: "Check in at the given coordinates",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords, err := parseCoords(args[0], args[1])
		if err != nil {
			return err
		}

		a, err := newApp("CheckIn")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.CheckIn(cmd.Context(), coords)
		if err != nil {
			return fmt.Errorf("check-in failed: %w", err)
		}

		fmt.Printf("Checked in at %s\n", rec.Timestamp.Format("15:04:05"))
		return nil
	},
}

// out command
var outCmd = &cobra.Command{
	Use:   "out LAT LNG",
	Short: "Check out at the given coordinates",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		coords, err := parseCoords(args[0], args[1])
		if err != nil {
			return err
		}

		a, err := newApp("CheckOut")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.CheckOut(cmd.Context(), coords)
		if err != nil {
			return fmt.Errorf("check-out failed: %w", err)
		}

		fmt.Printf("Checked out at %s\n", rec.Timestamp.Format("15:04:05"))
		return nil
	},
}

// permit command
var permitCmd = &cobra.Command{
	Use:   "permit REASON...",
	Short: "Submit an absence with a reason",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason := strings.Join(args, " ")

		a, err := newApp("SubmitPermit")
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Permit(cmd.Context(), reason)
		if err != nil {
			return fmt.Errorf("permit failed: %w", err)
		}

		fmt.Printf("Permit recorded for %s\n", rec.Day())
		return nil
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export history to the configured archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp("ExportHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.Export(cmd.Context(), lastDays(days))
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		fmt.Printf("Exported as %s\n", key)
		return nil
	},
}

// duty command
var dutyCmd = &cobra.Command{
	Use:   "duty",
	Short: "Show whether you are currently on duty",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetDuty")
		if err != nil {
			return err
		}
		defer a.Close()

		onDuty, err := a.OnDuty()
		if err != nil {
			return err
		}
		if onDuty {
			fmt.Println("On duty.")
		} else {
			fmt.Println("Off duty.")
		}
		return nil
	},
}

// theme command
var themeCmd = &cobra.Command{
	Use:   "theme [on|off]",
	Short: "View or set the dark theme flag",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Theme")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			dark, err := a.DarkTheme()
			if err != nil {
				return err
			}
			if dark {
				fmt.Println("Dark theme: on")
			} else {
				fmt.Println("Dark theme: off")
			}
			return nil
		}

		switch args[0] {
		case "on":
			return a.SetDarkTheme(true)
		case "off":
			return a.SetDarkTheme(false)
		default:
			return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
		}
	},
}

// lastDays returns the range covering the last n days, including today.
func lastDays(n int) attendance.HistoryRange {
	now := time.Now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return attendance.HistoryRange{Start: end.AddDate(0, 0, -n), End: end}
}

func parseCoords(latArg, lngArg string) (attendance.Coordinates, error) {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil {
		return attendance.Coordinates{}, fmt.Errorf("invalid latitude %q", latArg)
	}
	lng, err := strconv.ParseFloat(lngArg, 64)
	if err != nil {
		return attendance.Coordinates{}, fmt.Errorf("invalid longitude %q", lngArg)
	}
	return attendance.Coordinates{Latitude: lat, Longitude: lng}, nil
}

func printRecordResult(res attendance.Result[*attendance.Record]) error {
	if res.State == attendance.StateError {
		return res.Err
	}

	if res.Stale {
		fmt.Println("(offline, showing cached record)")
	}
	rec := res.Value
	fmt.Printf("ID:     %s\n", rec.ID)
	fmt.Printf("Day:    %s\n", rec.Day())
	fmt.Printf("Status: %s\n", rec.Status)
	if rec.Status != attendance.StatusNotFilled {
		fmt.Printf("Time:   %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
	}
	if rec.Location != nil {
		fmt.Printf("Where:  %.6f, %.6f\n", rec.Location.Latitude, rec.Location.Longitude)
	}
	if rec.Reason != "" {
		fmt.Printf("Reason: %s\n", rec.Reason)
	}
	return nil
}

func formatLine(rec *attendance.Record) string {
	extra := ""
	switch {
	case rec.Reason != "":
		extra = "  " + rec.Reason
	case rec.Location != nil:
		extra = fmt.Sprintf("  %.4f,%.4f", rec.Location.Latitude, rec.Location.Longitude)
	}
	return fmt.Sprintf("%s  %-10s  %s%s",
		rec.Day(),
		rec.Status,
		rec.Timestamp.Format("15:04"),
		extra,
	)
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("days", "n", 30, "Number of days of history to show")
	rootCmd.AddCommand(inCmd)
	rootCmd.AddCommand(outCmd)
	rootCmd.AddCommand(permitCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().IntP("days", "n", 30, "Number of days of history to export")
	rootCmd.AddCommand(dutyCmd)
	rootCmd.AddCommand(themeCmd)
}
