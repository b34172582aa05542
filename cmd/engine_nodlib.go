//go:build !dlib

package cmd

import "errors"

func newDlibEngine(string) (faceEngine, func() error, error) {
	return nil, func() error { return nil }, errors.New("dlib engine not compiled in, rebuild with -tags dlib")
}
