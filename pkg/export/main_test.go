package export

import (
	"context"
	"os"
	"testing"

	clickhousetesting "github.com/openvaxlabs/vaxmart/pkg/clickhouse/testing"
	vaxtesting "github.com/openvaxlabs/vaxmart/pkg/testing"
)

var (
	sharedDB *clickhousetesting.DB
)

func TestMain(m *testing.M) {
	log := vaxtesting.NewLogger()
	var err error
	sharedDB, err = clickhousetesting.NewDB(context.Background(), log, nil)
	if err != nil {
		log.Error("failed to create shared DB", "error", err)
		os.Exit(1)
	}
	code := m.Run()
	sharedDB.Close()
	os.Exit(code)
}
