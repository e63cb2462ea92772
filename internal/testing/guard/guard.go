// Package guard switches the process into test mode when imported, so the
// binaries' entry points never start servers from test code.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FORECAST_TEST_MODE") == "" {
			_ = os.Setenv("FORECAST_TEST_MODE", "1")
		}
	})
}
