package analysis

import (
	"os"
	"testing"

	"github.com/selivandex/trendcast/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", ""); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}
