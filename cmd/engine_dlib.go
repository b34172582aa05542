//go:build dlib

package cmd

import (
	"fmt"

	"github.com/example/student-portal/internal/facematch/dlib"
)

func newDlibEngine(modelsDir string) (faceEngine, func() error, error) {
	engine, err := dlib.NewEngine(modelsDir)
	if err != nil {
		return nil, func() error { return nil }, fmt.Errorf("load dlib models: %w", err)
	}
	return engine, engine.Close, nil
}
