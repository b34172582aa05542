package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/student-portal/internal/config"
	"github.com/example/student-portal/internal/facematch"
	"github.com/example/student-portal/internal/logging"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <imageA> <imageB>",
	Short: "Compare the faces in two local images",
	Long: `Verify runs the face match evaluator on two image files and prints the
result as JSON. The exit status is 0 when the faces match and 1 otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Float64("threshold", 0, "Match threshold (default from FACE_THRESHOLD)")
	verifyCmd.Flags().Int("max-faces", 0, "Faces to encode per image (default from FACE_MAX_FACES)")
	verifyCmd.Flags().String("engine", "", "Face engine: deepface, grpc or dlib (default from FACE_ENGINE)")
	verifyCmd.Flags().String("log-level", "error", "Log level")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFaceEngine()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		cfg.FaceThreshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("max-faces") {
		cfg.FaceMaxFaces, _ = flags.GetInt("max-faces")
	}
	if flags.Changed("engine") {
		cfg.Engine, _ = flags.GetString("engine")
	}

	level, _ := flags.GetString("log-level")
	logger, err := logging.NewLogger(level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	engine, closeEngine, err := newFaceEngine(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine() //nolint:errcheck

	evaluator := facematch.NewEvaluator(cfg.FaceMatch(), engine, engine, facematch.WithLogger(logger))
	logger.Debug("verifying", zap.String("engine", cfg.Engine), zap.Any("config", evaluator.Config()))
	res := evaluator.Verify(cmd.Context(), args[0], args[1])

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !res.IsMatch() {
		return errNoMatch
	}
	return nil
}
