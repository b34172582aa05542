package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// errNoMatch makes the process exit non-zero without printing an error.
var errNoMatch = errors.New("faces do not match")

var rootCmd = &cobra.Command{
	Use:   "student-portal",
	Short: "Student portal with face verified profile pictures",
	Long: `Student portal serves registration, login and profile management for
students. A new profile picture is only accepted when it shows the same
person as the current one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errNoMatch) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()
}
