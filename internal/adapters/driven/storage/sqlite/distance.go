package sqlite

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"modernc.org/sqlite"

	"github.com/custodia-labs/ocrprov/internal/core/domain"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs vec_distance_cosine on every new connection.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("vec_distance_cosine", 2, vecDistanceCosine)
	})
	return registerErr
}

// vecDistanceCosine computes 1 - cos(a, b) over two little-endian float32 blobs.
func vecDistanceCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, err := vectorArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := vectorArg(args[1])
	if err != nil {
		return nil, err
	}
	return domain.CosineDistance(a, b)
}

func vectorArg(v driver.Value) ([]float32, error) {
	blob, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("vec_distance_cosine: expected blob, got %T", v)
	}
	return bytesToFloat32Slice(blob)
}
